package scraper

import "encoding/json"

// jsonLDNode is the part of a schema.org node (Restaurant, Offer, Product, ...) that
// can carry an image. Image is a URL, an ImageObject or a list of either.
type jsonLDNode struct {
	Image json.RawMessage `json:"image"`
	Logo  json.RawMessage `json:"logo"`
	Graph []jsonLDNode    `json:"@graph"`
}

type jsonLDImageObject struct {
	URL        string `json:"url"`
	ContentURL string `json:"contentUrl"`
}

// jsonLDImages returns the image URLs of a JSON-LD block in document order.
func jsonLDImages(data []byte) []string {
	var nodes []jsonLDNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		var node jsonLDNode
		if err := json.Unmarshal(data, &node); err != nil {
			return nil
		}
		nodes = []jsonLDNode{node}
	}
	var out []string
	for _, n := range nodes {
		out = append(out, n.images()...)
	}
	return out
}

func (n jsonLDNode) images() []string {
	out := imageValues(n.Image)
	out = append(out, imageValues(n.Logo)...)
	for _, child := range n.Graph {
		out = append(out, child.images()...)
	}
	return out
}

func imageValues(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return []string{s}
	}
	var obj jsonLDImageObject
	if json.Unmarshal(raw, &obj) == nil && (obj.URL != "" || obj.ContentURL != "") {
		if obj.URL != "" {
			return []string{obj.URL}
		}
		return []string{obj.ContentURL}
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var out []string
		for _, item := range list {
			out = append(out, imageValues(item)...)
		}
		return out
	}
	return nil
}
