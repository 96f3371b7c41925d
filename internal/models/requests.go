package models

type CreatePostRequest struct {
	Content    string   `json:"content"`
	ImageKeys  []string `json:"imageKeys"`
	Tags       []string `json:"tags"`
	IsMarkdown bool     `json:"isMarkdown"`
}

type UploadURLsRequest struct {
	Count int `json:"count"`
}

type ProfileUpdateRequest struct {
	Nickname string `json:"nickname"`
}

type ListPostsResponse struct {
	Items     []Post `json:"items"`
	Limit     int    `json:"limit"`
	NextToken string `json:"nextToken,omitempty"`
}

type UploadURL struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type UploadURLsResponse struct {
	PostID    string      `json:"postId"`
	URLs      []UploadURL `json:"urls"`
	ExpiresIn int         `json:"expiresIn"`
}
