// Package provider contains HTTP clients for the upstream fitness clouds.
// Each client wraps one vendor API behind the types the refresher consumes.
package provider

import (
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
)

// envelope is the shared response frame the vendor gateways use. Status zero
// means success; Data carries the endpoint-specific payload.
type envelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

func newClient(baseURL, token string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}
