package scraper

// imageSelector names an element and the attribute holding an image URL.
type imageSelector struct {
	query string
	attr  string
}

// imageSelectors in order of preference.
var imageSelectors = []imageSelector{
	{query: `meta[property="og:image:secure_url"]`, attr: "content"},
	{query: `meta[property="og:image"]`, attr: "content"},
	{query: `meta[property="og:image:url"]`, attr: "content"},
	{query: `meta[name="twitter:image"]`, attr: "content"},
	{query: `meta[name="twitter:image:src"]`, attr: "content"},
	{query: `link[rel="image_src"]`, attr: "href"},
	{query: `meta[itemprop="image"]`, attr: "content"},
}
