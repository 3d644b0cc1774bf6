package modelclient

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type mockConn struct {
	grpc.ClientConnInterface

	responses map[string]map[string]any
	errs      map[string]error
	failFirst int // number of Unavailable failures before success

	calls    []string
	requests []map[string]any
}

func (m *mockConn) Invoke(_ context.Context, method string, args any, reply any, _ ...grpc.CallOption) error {
	m.calls = append(m.calls, method)
	m.requests = append(m.requests, args.(*structpb.Struct).AsMap())
	if m.failFirst > 0 {
		m.failFirst--
		return status.Error(codes.Unavailable, "warming up")
	}
	if err := m.errs[method]; err != nil {
		return err
	}
	resp, err := structpb.NewStruct(m.responses[method])
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), resp)
	return nil
}

func newMock() *mockConn {
	return &mockConn{responses: map[string]map[string]any{}, errs: map[string]error{}}
}

// #endregion mock

// #region constructor-tests
func TestNewClientLazyDial(t *testing.T) {
	c, err := New("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer c.Close()
}

func TestNewWithConnClose(t *testing.T) {
	c := NewWithConn(newMock())
	if err := c.Close(); err != nil {
		t.Fatalf("close without conn should be a no-op, got %v", err)
	}
}

// #endregion constructor-tests

// #region predict-tests
func TestPredict_Success(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Predict"] = map[string]any{
		"scores": map[string]any{"positive": 0.783, "neutral": 0.1, "negative": 0.117},
	}
	c := NewWithConn(m)

	scores, err := c.Predict(context.Background(), "Hello world!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["positive"] != 0.783 {
		t.Errorf("expected positive 0.783, got %f", scores["positive"])
	}
	if len(scores) != 3 {
		t.Errorf("expected 3 labels, got %d", len(scores))
	}
	if m.requests[0]["sentence"] != "Hello world!" {
		t.Errorf("sentence not forwarded: %v", m.requests[0])
	}
}

func TestPredict_Error(t *testing.T) {
	m := newMock()
	rpcErr := status.Error(codes.InvalidArgument, "empty sentence")
	m.errs[servicePrefix+"Predict"] = rpcErr
	c := NewWithConn(m)

	_, err := c.Predict(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, rpcErr) {
		t.Errorf("expected wrapped rpc error, got: %v", err)
	}
	if len(m.calls) != 1 {
		t.Errorf("non-transient error must not be retried, got %d calls", len(m.calls))
	}
}

func TestPredict_RetriesUnavailable(t *testing.T) {
	m := newMock()
	m.failFirst = 2
	m.responses[servicePrefix+"Predict"] = map[string]any{"scores": map[string]any{"positive": 1.0}}
	c := NewWithConn(m)

	scores, err := c.Predict(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["positive"] != 1.0 {
		t.Errorf("unexpected scores %v", scores)
	}
	if len(m.calls) != 3 {
		t.Errorf("expected 3 calls, got %d", len(m.calls))
	}
}

func TestPredict_UnavailableExhausted(t *testing.T) {
	m := newMock()
	m.failFirst = 10
	c := NewWithConn(m)

	_, err := c.Predict(context.Background(), "x")
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected unavailable after retries, got %v", err)
	}
	if len(m.calls) != defaultMaxRetries+1 {
		t.Errorf("expected %d calls, got %d", defaultMaxRetries+1, len(m.calls))
	}
}

func TestPredict_MissingScores(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Predict"] = map[string]any{}
	c := NewWithConn(m)

	if _, err := c.Predict(context.Background(), "x"); err == nil {
		t.Fatal("expected error for missing scores")
	}
}

// #endregion predict-tests

// #region logits-tests
func TestLogits_Success(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Logits"] = map[string]any{
		"logits": []any{1.0, -2.0},
		"labels": []any{"positive", "negative"},
	}
	c := NewWithConn(m)

	logits, labels, err := c.Logits(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logits) != 2 || logits[1] != -2.0 {
		t.Errorf("unexpected logits %v", logits)
	}
	if labels[0] != "positive" {
		t.Errorf("unexpected labels %v", labels)
	}
}

func TestLogits_LengthMismatch(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Logits"] = map[string]any{
		"logits": []any{1.0},
		"labels": []any{"positive", "negative"},
	}
	c := NewWithConn(m)

	if _, _, err := c.Logits(context.Background(), "x"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

// #endregion logits-tests

// #region embed-tests
func TestEmbed_Success(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Embed"] = map[string]any{"embedding": []any{0.5, 0.25, 0.75}}
	c := NewWithConn(m)

	emb, err := c.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb) != 3 || emb[0] != 0.5 {
		t.Errorf("unexpected embedding %v", emb)
	}
}

func TestEmbed_BadElement(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Embed"] = map[string]any{"embedding": []any{"nope"}}
	c := NewWithConn(m)

	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

// #endregion embed-tests

// #region generation-tests
func TestParaphrase_ForwardsParams(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Paraphrase"] = map[string]any{"paraphrases": []any{"a", "b"}}
	c := NewWithConn(m)

	out, err := c.Paraphrase(context.Background(), "src", 20, 1.5, 50, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 paraphrases, got %d", len(out))
	}
	req := m.requests[0]
	if req["num_return_sequences"] != 20.0 || req["top_k"] != 50.0 || req["temperature"] != 1.5 {
		t.Errorf("params not forwarded: %v", req)
	}
}

func TestFillMask_Success(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"FillMask"] = map[string]any{"fillers": []any{"great", "fine"}}
	c := NewWithConn(m)

	out, err := c.FillMask(context.Background(), []string{"a", "good", "day"}, 1, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != "great" {
		t.Errorf("unexpected fillers %v", out)
	}
	if m.requests[0]["position"] != 1.0 {
		t.Errorf("position not forwarded: %v", m.requests[0])
	}
}

func TestNearestWords_Error(t *testing.T) {
	m := newMock()
	rpcErr := errors.New("index not loaded")
	m.errs[servicePrefix+"NearestWords"] = rpcErr
	c := NewWithConn(m)

	_, err := c.NearestWords(context.Background(), "good", 30)
	if !errors.Is(err, rpcErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestLabels_Success(t *testing.T) {
	m := newMock()
	m.responses[servicePrefix+"Labels"] = map[string]any{"labels": []any{"negative", "neutral", "positive"}}
	c := NewWithConn(m)

	labels, err := c.Labels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 3 {
		t.Errorf("expected 3 labels, got %v", labels)
	}
}

// #endregion generation-tests
