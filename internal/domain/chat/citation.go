package chat

// Citation is a resolved reference to a search hit, suitable for clients.
type Citation struct {
	DocID  string `json:"docId"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
	App    string `json:"app"`
	Entity string `json:"entity,omitempty"`
}

// ImageCitation carries inline image bytes referenced by a [d_i] marker.
// CitationKey is "docIndex_imageIndex".
type ImageCitation struct {
	CitationKey string   `json:"citationKey"`
	ImagePath   string   `json:"imagePath"`
	ImageData   string   `json:"imageData"` // base64
	MimeType    string   `json:"mimeType,omitempty"`
	Item        Citation `json:"item"`
}
