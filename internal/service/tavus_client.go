package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/tracing"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const defaultTavusBaseURL = "https://tavusapi.com"

var ErrNoConversationURL = errors.New("No conversation URL received from Tavus API.")

type CreateConversationRequest struct {
	ReplicaID             string `json:"replica_id"`
	ConversationalContext string `json:"conversational_context"`
	ConversationName      string `json:"conversation_name,omitempty"`
}

type Conversation struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status,omitempty"`
}

// TavusClient 对话视频会话 API
type TavusClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewTavusClient(cfg config.TavusConfig) *TavusClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTavusBaseURL
	}
	return &TavusClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured API Key 为空或仍是占位值时返回 false
func (c *TavusClient) Configured() bool {
	return c.apiKey != "" && c.apiKey != util.TavusAPIKeyPlaceholder
}

func (c *TavusClient) CreateConversation(ctx context.Context, req CreateConversationRequest) (conv *Conversation, err error) {
	if !c.Configured() {
		return nil, &util.ConfigMissingError{
			Message: "Tavus API key is not configured. Please check your environment variables or contact support.",
		}
	}
	if strings.TrimSpace(req.ReplicaID) == "" {
		return nil, &util.ConfigMissingError{
			Message: "Tavus configuration missing. Please check environment variables.",
		}
	}

	ctx, span := tracing.StartSpan(ctx, "tavus.create_conversation",
		attribute.String("tavus.replica_id", req.ReplicaID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/conversations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &util.NetworkError{Service: "Tavus", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &util.NetworkError{Service: "Tavus", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		message := apiErr.Message
		if message == "" {
			message = apiErr.Error
		}
		return nil, &util.RemoteError{Service: "Tavus", Status: resp.StatusCode, Message: message}
	}

	var result Conversation
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode tavus response: %w", err)
	}
	if result.ConversationURL == "" {
		return nil, ErrNoConversationURL
	}
	return &result, nil
}
