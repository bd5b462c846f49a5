// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are an assistant that analyzes hotel-industry emails.
Classify the email as one of: "stop_sale", "reservation", "other".
Respond with a single JSON object and nothing else:
{
  "email_type": "stop_sale" | "reservation" | "other",
  "confidence": <0.0-1.0>,
  "language": "<ISO 639-1 code>",
  "stop_sale": {
    "hotel_name": "...",
    "date_from": "YYYY-MM-DD",
    "date_to": "YYYY-MM-DD",
    "room_types": ["DBL", ...],
    "board_types": ["AI", ...],
    "is_close": true,
    "reason": "..."
  } | null,
  "reservation": {
    "voucher_no": "...",
    "hotel_name": "...",
    "check_in": "YYYY-MM-DD",
    "check_out": "YYYY-MM-DD",
    "room_type": "DBL",
    "board_type": "AI",
    "adults": 2,
    "children": 0,
    "guests": [{"title": "Mr", "first_name": "...", "last_name": "..."}],
    "amount": 1250.00,
    "currency": "EUR"
  } | null
}
Only include values explicitly present in the email. Use null or omit any
field the email does not state. Never invent dates or hotel names.`

// maxBodyChars bounds the excerpt sent to the model. Stop-sale and
// reservation facts sit at the top of these emails; the tail is signatures
// and quoted threads.
const maxBodyChars = 8000

// aiPayload mirrors the JSON object the model is asked to return.
type aiPayload struct {
	EmailType  string  `json:"email_type"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	StopSale   *struct {
		HotelName  string   `json:"hotel_name"`
		DateFrom   string   `json:"date_from"`
		DateTo     string   `json:"date_to"`
		RoomTypes  []string `json:"room_types"`
		BoardTypes []string `json:"board_types"`
		IsClose    *bool    `json:"is_close"`
		Reason     string   `json:"reason"`
	} `json:"stop_sale"`
	Reservation *struct {
		VoucherNo string `json:"voucher_no"`
		HotelName string `json:"hotel_name"`
		CheckIn   string `json:"check_in"`
		CheckOut  string `json:"check_out"`
		RoomType  string `json:"room_type"`
		BoardType string `json:"board_type"`
		Adults    int    `json:"adults"`
		Children  int    `json:"children"`
		Guests    []struct {
			Title     string `json:"title"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"guests"`
		Amount   *float64 `json:"amount"`
		Currency string   `json:"currency"`
	} `json:"reservation"`
}

// OpenAIClient analyzes emails with a chat-completion call that returns a
// constrained JSON object.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds the AI extractor client.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Analyze sends the email to the model and parses its JSON verdict.
func (c *OpenAIClient) Analyze(ctx context.Context, subject, body string) (*aiPayload, error) {
	if runes := []rune(body); len(runes) > maxBodyChars {
		body = string(runes[:maxBodyChars])
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Subject: %s\n\n%s", subject, body)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	// Some models wrap JSON in a code fence despite the response format.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var payload aiPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return &payload, nil
}
