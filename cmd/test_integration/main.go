// Command test_integration drives a running papergraph server through
// ingest, link, query and ask.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := os.Getenv("PAPERGRAPH_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")
	suffix := fmt.Sprintf("%d", time.Now().Unix())

	fmt.Println("1. Ingesting papers...")
	var ingest struct {
		Results []struct {
			Result struct {
				PaperID string `json:"paper_id"`
			} `json:"result"`
			Error string `json:"error"`
		} `json:"results"`
	}
	payload := map[string]any{
		"papers": []map[string]any{
			{
				"title":    "FastSplat " + suffix,
				"abstract": "Real-time Gaussian splatting.",
				"year":     2023,
				"authors":  []string{"Ada Lovelace"},
				"text":     "We introduce FastSplat, a Gaussian splatting renderer evaluated on DatasetX with PSNR.",
			},
			{
				"title":    "SplatPlus " + suffix,
				"abstract": "Better Gaussian splatting.",
				"year":     2024,
				"authors":  []string{"Alan Turing"},
				"text":     "SplatPlus improves on FastSplat. We evaluate Gaussian splatting on DatasetX with PSNR.",
			},
		},
		"link": true,
	}
	if !sendRequest(baseURL, http.MethodPost, "/papers", payload, &ingest) {
		fail("Ingest papers")
	}
	for _, r := range ingest.Results {
		if r.Error != "" {
			fail("Ingest papers: " + r.Error)
		}
	}
	fmt.Println("PASSED: Ingest papers")

	fmt.Println("2. Listing papers...")
	if !sendRequest(baseURL, http.MethodGet, "/papers", nil, nil) {
		fail("List papers")
	}
	fmt.Println("PASSED: List papers")

	fmt.Println("3. Querying paper relations...")
	paperID := ingest.Results[0].Result.PaperID
	for _, q := range []string{"improvements", "similar", "concepts", "datasets", "metrics"} {
		if !sendRequest(baseURL, http.MethodGet, "/papers/"+paperID+"/"+q, nil, nil) {
			fail("Query " + q)
		}
	}
	fmt.Println("PASSED: Paper queries")

	fmt.Println("4. Asking a question...")
	if !sendRequest(baseURL, http.MethodPost, "/ask", map[string]string{"question": "Which paper improves on FastSplat?"}, nil) {
		fail("Ask")
	}
	fmt.Println("PASSED: Ask")
}

func fail(step string) {
	fmt.Println("FAILED: " + step)
	os.Exit(1)
}

func sendRequest(baseURL, method, endpoint string, payload any, out any) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			return false
		}
	}
	return true
}
