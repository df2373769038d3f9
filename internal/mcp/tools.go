package mcp

// Tool names
const (
	ToolVectorSearch = "vector_search"
	ToolCorpusStatus = "corpus_status"
)

// Limits on tool arguments
const (
	MaxTopK         = 50
	MaxSurroundingK = 20
)

// VectorSearchInput defines the input schema for the vector_search tool.
type VectorSearchInput struct {
	Query        string `json:"query" jsonschema:"the text query to search for in the document store"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"number of passages to return, default 5"`
	SurroundingK *int   `json:"surrounding_k,omitempty" jsonschema:"sentences of context on each side of a hit, default 2"`
}

// VectorSearchOutput defines the output schema for the vector_search tool.
type VectorSearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"passages ordered by descending similarity"`
}

// SearchResultOutput is one retrieved passage.
type SearchResultOutput struct {
	Score float64 `json:"score" jsonschema:"cosine similarity rounded to 3 decimals"`
	File  string  `json:"file" jsonschema:"path of the stored document text"`
	Span  [2]int  `json:"span" jsonschema:"start and end byte offsets of the passage in the file"`
	Text  string  `json:"text" jsonschema:"the passage, including surrounding sentences"`
}

// CorpusStatusInput defines the input schema for the corpus_status tool (no parameters).
type CorpusStatusInput struct{}

// CorpusStatusOutput defines the output schema for the corpus_status tool.
type CorpusStatusOutput struct {
	Documents  int    `json:"documents"`
	Sentences  int    `json:"sentences"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`
	Backend    string `json:"backend"`
	Storage    string `json:"storage"`
}
