package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// DefaultMaxImageBytes は取得する画像の最大サイズ。
const DefaultMaxImageBytes = 20 * 1024 * 1024

// ErrImageTooLarge は画像が最大サイズを超えた場合に返される。
var ErrImageTooLarge = errors.New("image exceeds maximum size")

// blockedNetworks は事前検証で拒否するネットワーク範囲。
// 接続時の検証はsafeurlのDialerが行い、DNS再バインディングにも対応する。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// ImageFetcher は生成プロバイダーが返した画像URLから画像を取得する。
type ImageFetcher struct {
	client   *http.Client
	maxBytes int64
	validate func(rawURL string) error
}

// NewImageFetcher はsafeurlのHTTPクライアントを使うImageFetcherを生成する。
// httpsの443番ポートのみ許可し、プライベート・ループバック・リンクローカル宛は接続時に拒否される。
func NewImageFetcher(timeout time.Duration, maxBytes int64) *ImageFetcher {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return newImageFetcher(safeurl.Client(config).Client, maxBytes, ValidateImageURL)
}

func newImageFetcher(client *http.Client, maxBytes int64, validate func(string) error) *ImageFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageFetcher{client: client, maxBytes: maxBytes, validate: validate}
}

// Fetch は画像を取得し、データとMIMEタイプを返す。
// image/*以外のContent-Typeと最大サイズ超過はエラーにする。
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := f.validate(rawURL); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	mimeType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("unexpected image content type %q", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", ErrImageTooLarge
	}

	return data, mimeType, nil
}

// ValidateImageURL はDNS解決を伴わない静的な検証を行う。
// httpsのみ許可し、IPリテラルはブロック対象の範囲、ホスト名はlocalhostを拒否する。
func ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip.String())
			}
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}
