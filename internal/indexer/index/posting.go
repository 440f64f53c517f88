package index

// Posting is one document's weight for a term. The JSON field names are the
// persisted inverted-index format.
type Posting struct {
	DocumentID int     `json:"document_id"`
	Filename   string  `json:"filename"`
	TFIDF      float64 `json:"tfidf"`
}

// PostingList is ordered by ascending DocumentID.
type PostingList []Posting

// InvertedIndex maps a term to its postings. A term is a key only if at
// least one document has a nonzero weight for it.
type InvertedIndex map[string]PostingList

// ContentEntry is the preview row persisted for one document.
type ContentEntry struct {
	DocumentName string `json:"document_name"`
	Content      string `json:"content"`
}

// ContentTable maps document id to its name and extracted text.
type ContentTable map[int]ContentEntry
