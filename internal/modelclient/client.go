package modelclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	retry "github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region constants
const servicePrefix = "/chameleon.v1.ModelService/"

const (
	defaultMaxRetries = 3
	defaultBackoff    = 200 * time.Millisecond
)

// #endregion constants

// #region client-struct
// Client wraps the gRPC connection to the Python inference service that hosts
// the classifier, paraphraser, embedding model and masked language model.
// Requests and responses are google.protobuf.Struct documents.
type Client struct {
	conn       *grpc.ClientConn
	cc         grpc.ClientConnInterface
	maxRetries uint64
	backoff    time.Duration
}

// #endregion client-struct

// #region constructor
// New connects to the inference gRPC server.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:       conn,
		cc:         conn,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}, nil
}

// NewWithConn creates a Client over an injected connection.
// Used for testing without a real gRPC server.
func NewWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, maxRetries: defaultMaxRetries, backoff: time.Millisecond}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region invoke
// call performs one unary RPC. Unavailable is retried with Fibonacci backoff;
// every other failure is returned as is.
func (c *Client) call(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", strings.ToLower(method), err)
	}

	var out *structpb.Struct
	b := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		out = &structpb.Struct{}
		if err := c.cc.Invoke(ctx, servicePrefix+method, in, out); err != nil {
			if status.Code(err) == codes.Unavailable {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s rpc: %w", strings.ToLower(method), err)
	}
	return out.AsMap(), nil
}

// #endregion invoke

// #region predict
// Predict returns the classifier's label→probability mapping for a sentence.
func (c *Client) Predict(ctx context.Context, sentence string) (map[string]float64, error) {
	resp, err := c.call(ctx, "Predict", map[string]any{"sentence": sentence})
	if err != nil {
		return nil, err
	}
	raw, ok := resp["scores"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("predict: missing scores in response")
	}
	scores := make(map[string]float64, len(raw))
	for label, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("predict: score for %q is %T", label, v)
		}
		scores[label] = f
	}
	return scores, nil
}

// #endregion predict

// #region logits
// Logits returns raw classifier logits together with the label order they follow.
func (c *Client) Logits(ctx context.Context, sentence string) ([]float64, []string, error) {
	resp, err := c.call(ctx, "Logits", map[string]any{"sentence": sentence})
	if err != nil {
		return nil, nil, err
	}
	logits, err := floats(resp["logits"])
	if err != nil {
		return nil, nil, fmt.Errorf("logits: %w", err)
	}
	labels, err := stringsOf(resp["labels"])
	if err != nil {
		return nil, nil, fmt.Errorf("logits labels: %w", err)
	}
	if len(labels) != len(logits) {
		return nil, nil, fmt.Errorf("logits: %d values for %d labels", len(logits), len(labels))
	}
	return logits, labels, nil
}

// #endregion logits

// #region labels
// Labels returns the classifier's ordered label set.
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, "Labels", map[string]any{})
	if err != nil {
		return nil, err
	}
	labels, err := stringsOf(resp["labels"])
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	return labels, nil
}

// #endregion labels

// #region embed
// Embed returns the mean-pooled sentence embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.call(ctx, "Embed", map[string]any{"text": text})
	if err != nil {
		return nil, err
	}
	vals, err := floats(resp["embedding"])
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out, nil
}

// #endregion embed

// #region nearest-words
// NearestWords returns up to k nearest neighbours of word in the word embedding space,
// closest first.
func (c *Client) NearestWords(ctx context.Context, word string, k int) ([]string, error) {
	resp, err := c.call(ctx, "NearestWords", map[string]any{"word": word, "k": float64(k)})
	if err != nil {
		return nil, err
	}
	words, err := stringsOf(resp["words"])
	if err != nil {
		return nil, fmt.Errorf("nearest words: %w", err)
	}
	return words, nil
}

// #endregion nearest-words

// #region paraphrase
// Paraphrase samples n rewrites of sentence.
func (c *Client) Paraphrase(ctx context.Context, sentence string, n int, temperature float64, topK int, topP float64) ([]string, error) {
	resp, err := c.call(ctx, "Paraphrase", map[string]any{
		"sentence":             sentence,
		"num_return_sequences": float64(n),
		"temperature":          temperature,
		"top_k":                float64(topK),
		"top_p":                topP,
	})
	if err != nil {
		return nil, err
	}
	out, err := stringsOf(resp["paraphrases"])
	if err != nil {
		return nil, fmt.Errorf("paraphrase: %w", err)
	}
	return out, nil
}

// #endregion paraphrase

// #region fill-mask
// FillMask masks words[position] and returns up to k ranked fillers.
func (c *Client) FillMask(ctx context.Context, words []string, position, k int) ([]string, error) {
	ws := make([]any, len(words))
	for i, w := range words {
		ws[i] = w
	}
	resp, err := c.call(ctx, "FillMask", map[string]any{
		"words":    ws,
		"position": float64(position),
		"k":        float64(k),
	})
	if err != nil {
		return nil, err
	}
	out, err := stringsOf(resp["fillers"])
	if err != nil {
		return nil, fmt.Errorf("fill mask: %w", err)
	}
	return out, nil
}

// #endregion fill-mask

// #region decode-helpers
func floats(v any) ([]float64, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	out := make([]float64, len(list))
	for i, x := range list {
		f, ok := x.(float64)
		if !ok {
			return nil, fmt.Errorf("element %d is %T", i, x)
		}
		out[i] = f
	}
	return out, nil
}

func stringsOf(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	out := make([]string, len(list))
	for i, x := range list {
		s, ok := x.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T", i, x)
		}
		out[i] = s
	}
	return out, nil
}

// #endregion decode-helpers
