package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Ramdan0505/radlab-preinvest/internal/metrics"
	"github.com/Ramdan0505/radlab-preinvest/pkg/errkind"
)

// Embedder turns a batch of texts into vectors. The model itself is an
// external collaborator; this core only consumes its output.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFactory defers embedder construction until first use, so opening
// a case store never pays the model-connection cost up front.
type EmbedderFactory func() (Embedder, error)

// HTTPEmbedder calls a remote text-embedding service.
type HTTPEmbedder struct {
	url    string
	client *http.Client
}

func NewHTTPEmbedder(url string) *HTTPEmbedder {
	return &HTTPEmbedder{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "semantic.HTTPEmbedder.Embed"
	start := time.Now()
	defer func() {
		metrics.EmbedDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.EmbedBatches.Inc()

	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, errkind.E(errkind.KindInternal, op, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, errkind.E(errkind.KindExternalService, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errkind.E(errkind.KindExternalService, op, "embedding service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errkind.E(errkind.KindExternalService, op,
			fmt.Sprintf("embedding service returned %d", resp.StatusCode))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errkind.E(errkind.KindExternalService, op, "decode response", err)
	}
	if len(decoded.Vectors) != len(texts) {
		return nil, errkind.E(errkind.KindExternalService, op,
			fmt.Sprintf("embedding service returned %d vectors for %d texts", len(decoded.Vectors), len(texts)))
	}
	return decoded.Vectors, nil
}
