// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package groq provides a very minimal client for interacting with Groq API.
package groq

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.astrophena.name/drillbot/internal/request"
)

const defaultAPIURL = "https://api.groq.com/openai/v1"

// DefaultModel is a reasonable model choice for chat completions.
const DefaultModel = "llama-3.3-70b-versatile"

// Client holds configuration for interacting with the Groq API.
type Client struct {
	// APIKey is the API key used for authentication.
	APIKey string
	// Model is the model used for chat completions, for example
	// "llama-3.3-70b-versatile".
	Model string
	// APIURL is an optional API endpoint override. Defaults to the public Groq
	// API endpoint.
	APIURL string
	// HTTPClient is an optional HTTP client to use for requests. Defaults to
	// request.DefaultClient.
	HTTPClient *http.Client
	// Scrubber is an optional strings.Replacer that scrubs unwanted data from
	// error messages.
	Scrubber *strings.Replacer
}

// Message is a single message of a chat completion.
type Message struct {
	// Role is the author of the message: "system", "user" or "assistant".
	Role string `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
}

// ChatCompletionParams defines the structure for the request body sent to the
// chat completions API.
type ChatCompletionParams struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
}

// ChatCompletion defines the structure of the response received from the chat
// completions API.
type ChatCompletion struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a single generated completion.
type Choice struct {
	Message Message `json:"message"`
}

var errNoChoices = errors.New("groq: no choices in response")

// ChatCompletion sends a chat completion request to the Groq API.
func (c *Client) ChatCompletion(ctx context.Context, params ChatCompletionParams) (*ChatCompletion, error) {
	if params.Model == "" {
		return nil, errors.New("groq: model shouldn't be empty")
	}
	apiURL := c.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return request.Make[*ChatCompletion](ctx, request.Params{
		Method: http.MethodPost,
		URL:    apiURL + "/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.APIKey,
		},
		Body:       params,
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
}

// Complete generates a reply to prompt, optionally guided by the system
// message.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []Message
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	resp, err := c.ChatCompletion(ctx, ChatCompletionParams{
		Messages: messages,
		Model:    c.Model,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
