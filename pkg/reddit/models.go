package reddit

// Listing is the envelope of a paginated listing response
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	After    string  `json:"after"`
	Children []Thing `json:"children"`
}

// Thing wraps a single listing entry
type Thing struct {
	Kind string     `json:"kind"`
	Data Submission `json:"data"`
}

// Submission holds the fields read from a post. Pointer fields are those
// the API may omit or send as null.
type Submission struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Score       *int     `json:"score"`
	NumComments *int     `json:"num_comments"`
	Author      *string  `json:"author"`
	CreatedUTC  float64  `json:"created_utc"`
	URL         string   `json:"url"`
	UpvoteRatio *float64 `json:"upvote_ratio"`
	Over18      *bool    `json:"over_18"`
	Spoiler     bool     `json:"spoiler"`
	Stickied    bool     `json:"stickied"`
	Selftext    *string  `json:"selftext"`
	Subreddit   string   `json:"subreddit"`
}
