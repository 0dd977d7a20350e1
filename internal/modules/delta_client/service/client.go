package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signal_trader/internal/models"
	metrics "signal_trader/internal/modules/metrics/service"
	"signal_trader/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"
)

const userAgent = "signal-trader/1.0"

type Options struct {
	BaseURL   string
	APIKey    string
	APISecret string
	ProductID int
	Symbol    string
	Timeout   time.Duration
}

// Client: REST-клиент Delta Exchange v2 для одного продукта.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	productID int
	symbol    string

	http *http.Client
	rec  *metrics.Recorder
	now  func() time.Time
}

func New(opts Options, rec *metrics.Recorder) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("delta: empty base url")
	}
	if opts.ProductID <= 0 {
		return nil, fmt.Errorf("delta: bad product id %d", opts.ProductID)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		productID: opts.ProductID,
		symbol:    opts.Symbol,
		http:      &http.Client{Timeout: opts.Timeout},
		rec:       rec,
		now:       time.Now,
	}, nil
}

// sign: hex(HMAC_SHA256(secret, method + ts + path + query + body)).
func (c *Client) sign(method, ts, path, query, body string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(method + ts + path + query + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// do sends a signed request and decodes the envelope result into out.
// Transport failures, non-2xx codes and success=false are all transient.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (err error) {
	span, ctx := tracing.StartSpan(ctx, "delta."+op,
		opentracing.Tag{Key: "http.method", Value: method},
		opentracing.Tag{Key: "http.path", Value: path},
	)
	started := time.Now()
	defer func() {
		c.rec.ObserveGateway(op, time.Since(started))
		tracing.Finish(span, err)
		if err != nil {
			err = models.Transient(op, err)
		}
	}()

	var payload []byte
	if in != nil {
		if payload, err = sonic.Marshal(in); err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
	}

	qs := ""
	if len(query) > 0 {
		qs = "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+qs, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("timestamp", ts)
	req.Header.Set("signature", c.sign(method, ts, path, qs, string(payload)))
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var env envelope
	decodeErr := sonic.Unmarshal(data, &env)

	if resp.StatusCode/100 != 2 {
		if decodeErr == nil && env.Error != nil {
			return fmt.Errorf("http %d: %s %v", resp.StatusCode, env.Error.Code, env.Error.Context)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, truncate(data))
	}
	if decodeErr != nil {
		return fmt.Errorf("decode: %w; body=%s", decodeErr, truncate(data))
	}
	if !env.Success {
		code := "unknown"
		if env.Error != nil {
			code = env.Error.Code
		}
		return fmt.Errorf("api error: %s", code)
	}

	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, models.DataInvalid("order id", err)
	}
	return n, nil
}
