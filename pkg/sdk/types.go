package vecrank

// VectorSource tells where the vector used to score an item came from.
type VectorSource string

// Vector source constants.
const (
	SourceSupplied VectorSource = "supplied"
	SourceEmbedded VectorSource = "embedded"
	SourceFallback VectorSource = "fallback"
)

// Item is a candidate for ranking. Embedding is optional; items without a
// usable vector are embedded from their text fields.
type Item struct {
	ID          string
	Title       string
	Description string
	Category    string
	Location    string
	Type        string
	ImageURL    string
	CreatedAt   string
	User        map[string]any
	Embedding   []float32
}

// RankOptions narrows the ranked list. The zero value returns every item.
type RankOptions struct {
	Limit    int      // 0 = no limit
	MinScore *float64 // nil = no threshold
}

// RankResult is a single ranked item.
type RankResult struct {
	ID          string
	Similarity  float64
	Title       string
	Description string
	Category    string
	Location    string
	Type        string
	ImageURL    string
	CreatedAt   string
	User        map[string]any
	Source      VectorSource
}

// CaptionResult is the outcome of captioning one image.
type CaptionResult struct {
	Caption         string
	OriginalCaption string
	DominantColor   string
	Brightness      float64
	Width           int
	Height          int
	Source          string // "remote" or "heuristic"
}
