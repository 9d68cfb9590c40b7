//go:build e2e

package e2e

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentJSON struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	SizeBytes  int64  `json:"size_bytes"`
	ChunkCount int    `json:"chunk_count"`
	ImageCount int    `json:"image_count"`
}

type ingestResultJSON struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	ImageCount int    `json:"image_count"`
}

type citationJSON struct {
	Marker     string  `json:"marker"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

type askResponseJSON struct {
	Answer    string         `json:"answer"`
	Mode      string         `json:"mode"`
	Retrieved int            `json:"retrieved"`
	Citations []citationJSON `json:"citations"`
}

const manualText = `Pump Maintenance Manual

The impeller must be inspected every six months. Remove the volute
casing before touching the impeller, and always drain the line first.

Seal replacement requires the shaft to be fully stopped. Use only
nitrile seals rated for the operating temperature of the pump.`

// TestE2E_DocumentLifecycle covers upload, list, get, download, delete
func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var docID string
	content := []byte(manualText)

	t.Run("upload document", func(t *testing.T) {
		resp, err := env.PostMultipart("/api/v1/documents", map[string][]byte{
			"manual.txt": content,
		})
		require.NoError(t, err)

		var result ingestResultJSON
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.DocumentID)
		assert.Equal(t, "manual.txt", result.Filename)
		assert.Greater(t, result.ChunkCount, 0)

		docID = result.DocumentID
	})

	t.Run("list shows ready document", func(t *testing.T) {
		resp, err := env.Get("/api/v1/documents")
		require.NoError(t, err)

		var docs []documentJSON
		require.NoError(t, json.Unmarshal(resp.Data, &docs))
		require.Len(t, docs, 1)
		assert.Equal(t, docID, docs[0].ID)
		assert.Equal(t, "ready", docs[0].Status)
		assert.Equal(t, int64(len(content)), docs[0].SizeBytes)
	})

	t.Run("get document by ID", func(t *testing.T) {
		resp, err := env.Get("/api/v1/documents/" + docID)
		require.NoError(t, err)

		var doc documentJSON
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		assert.Equal(t, "manual.txt", doc.Filename)
		assert.Greater(t, doc.ChunkCount, 0)
	})

	t.Run("download returns working presigned URL", func(t *testing.T) {
		resp, err := env.Get("/api/v1/documents/" + docID + "/download")
		require.NoError(t, err)

		var dl struct {
			URL string `json:"url"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &dl))
		require.NotEmpty(t, dl.URL)

		downloaded, err := env.DownloadFile(dl.URL)
		require.NoError(t, err)
		assert.Equal(t, SHA256Sum(content), SHA256Sum(downloaded))
	})

	t.Run("delete removes document", func(t *testing.T) {
		_, err := env.Delete("/api/v1/documents/" + docID)
		require.NoError(t, err)

		_, err = env.Get("/api/v1/documents/" + docID)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 404, apiErr.StatusCode)

		resp, err := env.Get("/api/v1/documents")
		require.NoError(t, err)
		var docs []documentJSON
		require.NoError(t, json.Unmarshal(resp.Data, &docs))
		assert.Empty(t, docs)
	})
}

// TestE2E_DuplicateFilename verifies the filename uniqueness conflict
func TestE2E_DuplicateFilename(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	files := map[string][]byte{"report.txt": []byte("quarterly report body")}

	_, err := env.PostMultipart("/api/v1/documents", files)
	require.NoError(t, err)

	_, err = env.PostMultipart("/api/v1/documents", files)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.StatusCode)
	assert.Equal(t, "DUPLICATE_FILENAME", apiErr.Code)
}

// TestE2E_BatchUpload verifies per-file outcomes in a multi-file upload
func TestE2E_BatchUpload(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, err := env.PostMultipart("/api/v1/documents", map[string][]byte{
		"first.txt": []byte("first body"),
	})
	require.NoError(t, err)

	// Batch where one file collides with the existing document.
	resp, err := env.PostMultipart("/api/v1/documents", map[string][]byte{
		"first.txt":  []byte("colliding body"),
		"second.txt": []byte("second body"),
	})
	require.NoError(t, err)

	var items []struct {
		Filename string            `json:"filename"`
		Result   *ingestResultJSON `json:"result"`
		Error    string            `json:"error"`
		Code     string            `json:"code"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	require.Len(t, items, 2)

	outcomes := map[string]string{}
	for _, item := range items {
		outcomes[item.Filename] = item.Code
	}
	assert.Equal(t, "DUPLICATE_FILENAME", outcomes["first.txt"])
	assert.Empty(t, outcomes["second.txt"])

	// The collision must not have blocked the sibling.
	listResp, err := env.Get("/api/v1/documents")
	require.NoError(t, err)
	var docs []documentJSON
	require.NoError(t, json.Unmarshal(listResp.Data, &docs))
	assert.Len(t, docs, 2)
}

// TestE2E_AskQuestion covers the answer pipeline over HTTP
func TestE2E_AskQuestion(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var docID string

	t.Run("setup: ingest manual", func(t *testing.T) {
		resp, err := env.PostMultipart("/api/v1/documents", map[string][]byte{
			"manual.txt": []byte(manualText),
		})
		require.NoError(t, err)

		var result ingestResultJSON
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		docID = result.DocumentID
	})

	t.Run("scoped question returns cited answer", func(t *testing.T) {
		resp, err := env.Post("/api/v1/answers", map[string]interface{}{
			"question": "How often must the impeller be inspected?",
			"scope":    []string{docID},
		})
		require.NoError(t, err)

		var ask askResponseJSON
		require.NoError(t, json.Unmarshal(resp.Data, &ask))
		assert.Equal(t, "rag", ask.Mode)
		assert.Greater(t, ask.Retrieved, 0)
		assert.NotEmpty(t, ask.Answer)
		require.NotEmpty(t, ask.Citations)
		assert.Equal(t, "c1", ask.Citations[0].Marker)
		assert.Equal(t, docID, ask.Citations[0].DocumentID)
		assert.Greater(t, ask.Citations[0].Score, 0.0)
	})

	t.Run("empty scope degrades to chat mode", func(t *testing.T) {
		resp, err := env.Post("/api/v1/answers", map[string]interface{}{
			"question": "Hello there",
		})
		require.NoError(t, err)

		var ask askResponseJSON
		require.NoError(t, json.Unmarshal(resp.Data, &ask))
		assert.Equal(t, "chat", ask.Mode)
		assert.Zero(t, ask.Retrieved)
		assert.Empty(t, ask.Citations)
	})

	t.Run("history is accepted", func(t *testing.T) {
		resp, err := env.Post("/api/v1/answers", map[string]interface{}{
			"question": "And the seals?",
			"scope":    []string{docID},
			"history": []map[string]string{
				{"role": "user", "content": "How often must the impeller be inspected?"},
				{"role": "assistant", "content": "Every six months."},
			},
		})
		require.NoError(t, err)

		var ask askResponseJSON
		require.NoError(t, json.Unmarshal(resp.Data, &ask))
		assert.Equal(t, "rag", ask.Mode)
	})

	t.Run("blank question is rejected", func(t *testing.T) {
		_, err := env.Post("/api/v1/answers", map[string]interface{}{
			"question": "   ",
		})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.StatusCode)
	})
}

// TestE2E_DeleteAll wipes the corpus in one call
func TestE2E_DeleteAll(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, err := env.PostMultipart("/api/v1/documents", map[string][]byte{
		"one.txt": []byte("first document"),
		"two.txt": []byte("second document"),
	})
	require.NoError(t, err)

	resp, err := env.Delete("/api/v1/documents")
	require.NoError(t, err)

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, int64(2), result.Deleted)

	listResp, err := env.Get("/api/v1/documents")
	require.NoError(t, err)
	var docs []documentJSON
	require.NoError(t, json.Unmarshal(listResp.Data, &docs))
	assert.Empty(t, docs)
}

// TestE2E_CLIWorkflow drives the mmrag binary against the test server
func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	workDir, err := os.MkdirTemp("", "mmrag-cli-*")
	require.NoError(t, err)
	defer os.RemoveAll(workDir)

	notesPath := filepath.Join(workDir, "notes.txt")
	require.NoError(t, os.WriteFile(notesPath, []byte(manualText), 0644))

	var docID string

	t.Run("mmrag ingest uploads file", func(t *testing.T) {
		out, err := env.RunMmrag(workDir, "ingest", "notes.txt")
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "Ingested notes.txt")
	})

	t.Run("mmrag list shows document", func(t *testing.T) {
		out, err := env.RunMmrag(workDir, "list", "--output")
		require.NoError(t, err, "output: %s", out)

		var docs []documentJSON
		require.NoError(t, json.Unmarshal([]byte(out), &docs))
		require.Len(t, docs, 1)
		assert.Equal(t, "notes.txt", docs[0].Filename)
		docID = docs[0].ID
	})

	t.Run("mmrag ask answers with sources", func(t *testing.T) {
		out, err := env.RunMmrag(workDir, "ask", "what does the manual say about seals?", "--scope", docID)
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "Sources:")
		assert.Contains(t, out, docID)
	})

	t.Run("mmrag get shows detail", func(t *testing.T) {
		out, err := env.RunMmrag(workDir, "get", docID)
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "notes.txt")
		assert.Contains(t, out, "ready")
	})

	t.Run("mmrag delete --all clears corpus", func(t *testing.T) {
		out, err := env.RunMmrag(workDir, "delete", "--all", "--force")
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "Deleted 1")

		out, err = env.RunMmrag(workDir, "list")
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "No documents found")
	})
}

// TestE2E_IngestFailureLeavesNoTrace verifies ingestion atomicity through
// the public surface: a rejected file must not appear anywhere.
func TestE2E_IngestFailureLeavesNoTrace(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	// Empty payloads are rejected by the coordinator.
	_, err := env.PostMultipart("/api/v1/documents", map[string][]byte{
		"empty.txt": {},
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)

	resp, err := env.Get("/api/v1/documents")
	require.NoError(t, err)
	var docs []documentJSON
	require.NoError(t, json.Unmarshal(resp.Data, &docs))
	assert.Empty(t, docs)
}
