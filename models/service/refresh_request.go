package service

import (
	"encoding/json"
)

// RefreshRequest is the message published to the background refresh
// topic: which book key to refresh and the resolution preference the
// original request carried.
type RefreshRequest struct {
	BookKey    string `json:"bookKey"`
	Preference string `json:"preference"`
}

func NewRefreshRequest(bookKey, preference string) *RefreshRequest {
	return &RefreshRequest{
		BookKey:    bookKey,
		Preference: preference,
	}
}

func RefreshRequestFromJSON(jsonData string) (*RefreshRequest, error) {
	request := &RefreshRequest{}
	err := json.Unmarshal([]byte(jsonData), request)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *RefreshRequest) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
