package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type seatRequest struct {
	SectionID string `json:"section_id"`
}

type seatResult struct {
	Data struct {
		SectionID string `json:"section_id"`
		StudentID string `json:"student_id"`
		Outcome   string `json:"outcome"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type attempt struct {
	Token    string
	Status   int
	Outcome  string
	ErrCode  string
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base       string
		sectionID  string
		tokensPath string
		capacity   int
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "Portal API base URL")
	flag.StringVar(&sectionID, "section", "", "Section ID to contend for")
	flag.StringVar(&tokensPath, "tokens", "", "Path to file with one student access token per line")
	flag.IntVar(&capacity, "capacity", 0, "Expected section capacity (0 disables the over-allocation check)")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if sectionID == "" || tokensPath == "" {
		log.Fatal("both -section and -tokens are required")
	}

	tokens, err := loadTokens(tokensPath)
	if err != nil {
		log.Fatalf("failed to load tokens: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	attempts := make([]attempt, len(tokens))

	// Fire all requests at once so the row lock in the allocator is
	// actually contended rather than serialized by the driver.
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(idx int, tok string) {
			defer wg.Done()
			attempts[idx] = requestSeat(client, base, sectionID, tok)
		}(i, token)
	}
	wg.Wait()

	enrolled, waitlisted := printReport(attempts)

	if capacity > 0 && enrolled > capacity {
		fmt.Printf("FAIL: %d enrolled exceeds capacity %d\n", enrolled, capacity)
		os.Exit(1)
	}
	fmt.Printf("Enrolled: %d, Waitlisted: %d, Requests: %d\n", enrolled, waitlisted, len(attempts))
}

func loadTokens(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tokens []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tokens = append(tokens, line)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens found in %s", path)
	}
	return tokens, nil
}

func requestSeat(client *http.Client, base, sectionID, token string) attempt {
	att := attempt{Token: token}

	body, err := json.Marshal(seatRequest{SectionID: sectionID})
	if err != nil {
		att.Err = err
		return att
	}
	url := strings.TrimRight(base, "/") + "/api/v1/registrations"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		att.Err = err
		return att
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	att.Duration = time.Since(start)
	if err != nil {
		att.Err = err
		return att
	}
	defer resp.Body.Close()

	att.Status = resp.StatusCode
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		att.Err = err
		return att
	}

	var result seatResult
	if err := json.Unmarshal(raw, &result); err != nil {
		att.Err = fmt.Errorf("decode response: %w", err)
		return att
	}
	att.Outcome = result.Data.Outcome
	if result.Error != nil {
		att.ErrCode = result.Error.Code
	}
	return att
}

func printReport(attempts []attempt) (enrolled, waitlisted int) {
	fmt.Println("Seat Contention Report")
	fmt.Println("======================")
	for i, att := range attempts {
		switch {
		case att.Err != nil:
			fmt.Printf("[ERROR] request %d: %v\n", i+1, att.Err)
		case att.ErrCode != "":
			fmt.Printf("[%s] request %d: status %d (%s)\n", att.ErrCode, i+1, att.Status, att.Duration)
		default:
			fmt.Printf("[%s] request %d: status %d (%s)\n", att.Outcome, i+1, att.Status, att.Duration)
			switch att.Outcome {
			case "ENROLLED":
				enrolled++
			case "WAITLISTED":
				waitlisted++
			}
		}
	}
	return enrolled, waitlisted
}
