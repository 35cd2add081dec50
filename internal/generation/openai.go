package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	maxResponseBytes  = 32 * 1024 * 1024
	imageSize         = "1024x1024"
	maxTextTokens     = 500
	interpretationSys = "You are an intuitive astrologer. Describe the soulmate shown in a love sketch in a warm, hopeful tone. Reply with plain text only."
)

// ImageDownloader はプロバイダーが画像をURLで返した場合に画像を取得する。
type ImageDownloader interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// OpenAIConfig はOpenAI互換APIの設定。
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	ImageModel string
	TextModel  string
}

// OpenAIClient はOpenAI互換の画像生成・チャット補完APIのクライアント。
type OpenAIClient struct {
	httpClient *http.Client
	downloader ImageDownloader
	logger     *slog.Logger
	config     OpenAIConfig
}

// NewOpenAIClient はOpenAIClientを生成する。
// httpClientのタイムアウトが生成処理全体の上限になる。
func NewOpenAIClient(httpClient *http.Client, downloader ImageDownloader, logger *slog.Logger, config OpenAIConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &OpenAIClient{
		httpClient: httpClient,
		downloader: downloader,
		logger:     logger,
		config:     config,
	}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// GenerateImage は画像を1枚生成する。
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var resp imageResponse
	err := c.post(ctx, "/images/generations", imageRequest{
		Model:          c.config.ImageModel,
		Prompt:         prompt,
		N:              1,
		Size:           imageSize,
		ResponseFormat: "b64_json",
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, &ProviderError{StatusCode: http.StatusOK, Message: "no image returned"}
	}

	item := resp.Data[0]
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, &ProviderError{StatusCode: http.StatusOK, Message: "invalid base64 image data"}
		}
		return &Image{Data: data, MIMEType: "image/png"}, nil
	case item.URL != "":
		data, mimeType, err := c.downloader.Fetch(ctx, item.URL)
		if err != nil {
			c.logger.Error("生成画像のダウンロードに失敗しました", slog.String("error", err.Error()))
			return nil, &ProviderError{StatusCode: http.StatusOK, Message: "failed to download generated image"}
		}
		return &Image{Data: data, MIMEType: mimeType}, nil
	default:
		return nil, &ProviderError{StatusCode: http.StatusOK, Message: "no image returned"}
	}
}

// GenerateText は解釈テキストを生成する。
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	var resp chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model: c.config.TextModel,
		Messages: []chatMessage{
			{Role: "system", Content: interpretationSys},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTextTokens,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ProviderError{StatusCode: http.StatusOK, Message: "empty interpretation returned"}
	}
	return resp.Choices[0].Message.Content, nil
}

// post はJSONリクエストを送信し、2xxならoutにデコードする。
// 2xx以外は*ProviderErrorを返す。
func (c *OpenAIClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("生成プロバイダーの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to call generation provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := parseProviderError(resp.StatusCode, respBody)
		c.logger.Error("生成プロバイダーがエラーを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", perr.Code),
			slog.String("message", perr.Message),
		)
		return perr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse provider response: %w", err)
	}
	return nil
}

func parseProviderError(status int, body []byte) *ProviderError {
	perr := &ProviderError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		perr.Message = env.Error.Message
		perr.Type = env.Error.Type
		if code, ok := env.Error.Code.(string); ok {
			perr.Code = code
		}
		return perr
	}

	perr.Message = http.StatusText(status)
	return perr
}

// compile-time interface check
var _ Provider = (*OpenAIClient)(nil)
