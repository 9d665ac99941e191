package reddit

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the OAuth API host
	DefaultBaseURL = "https://oauth.reddit.com"

	// DefaultTokenURL is the OAuth2 token endpoint
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// MaxPageSize is the largest listing page the API returns
	MaxPageSize = 100
)

var timeFilters = []string{"hour", "day", "week", "month", "year", "all"}

// ValidTimeFilter reports whether t is an accepted ranking window
func ValidTimeFilter(t string) bool {
	for _, f := range timeFilters {
		if f == t {
			return true
		}
	}
	return false
}

// SanitizeSubreddit strips a leading r/ or /r/ and surrounding slashes
func SanitizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "/")
	name = strings.TrimPrefix(name, "r/")
	return strings.Trim(name, "/ ")
}

// IsValidSubreddit checks the characters allowed in a community name
func IsValidSubreddit(name string) bool {
	if name == "" || len(name) > 21 {
		return false
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}
	return true
}

// TopURL builds the URL of one page of a subreddit's top listing
func TopURL(baseURL, subreddit, timeFilter string, pageSize int, after string) string {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	params := url.Values{}
	params.Set("t", timeFilter)
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}

	return fmt.Sprintf("%s/r/%s/top?%s", strings.TrimRight(baseURL, "/"), url.PathEscape(subreddit), params.Encode())
}
