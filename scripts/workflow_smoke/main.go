// Command workflow_smoke drives one exit request through the full approval
// lifecycle against a running API instance: student login and create, mentor
// approve, HOD approve, guard listing and exit mark. It exits non-zero when
// any step fails, so it can gate a deploy.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type credentials struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type stepResult struct {
	Name     string
	Status   int
	Err      error
	Duration time.Duration
}

type session struct {
	client *http.Client
	base   string
	token  string
}

func main() {
	var (
		base     string
		student  string
		mentor   string
		hod      string
		guard    string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&student, "student", "", "student login id")
	flag.StringVar(&mentor, "mentor", "", "mentor login id")
	flag.StringVar(&hod, "hod", "", "HOD login id")
	flag.StringVar(&guard, "guard", "", "guard login id")
	flag.StringVar(&password, "password", "", "shared password for the smoke accounts")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if student == "" || mentor == "" || hod == "" || guard == "" || password == "" {
		fmt.Fprintln(os.Stderr, "all of -student, -mentor, -hod, -guard and -password are required")
		os.Exit(2)
	}

	client := &http.Client{Timeout: timeout}
	var results []stepResult

	run := func(name string, fn func() (int, error)) bool {
		start := time.Now()
		status, err := fn()
		results = append(results, stepResult{Name: name, Status: status, Err: err, Duration: time.Since(start)})
		return err == nil
	}

	var requestID string

	studentSess := &session{client: client, base: base}
	mentorSess := &session{client: client, base: base}
	hodSess := &session{client: client, base: base}
	guardSess := &session{client: client, base: base}

	ok := run("student login", func() (int, error) {
		return studentSess.login(credentials{ID: student, Password: password})
	})
	ok = ok && run("create request", func() (int, error) {
		status, body, err := studentSess.do(http.MethodPost, "/requests", map[string]string{
			"reason": "workflow smoke run " + time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return status, err
		}
		requestID, err = extractID(body)
		return status, err
	})
	ok = ok && run("mentor login", func() (int, error) {
		return mentorSess.login(credentials{ID: mentor, Password: password})
	})
	ok = ok && run("mentor approve", func() (int, error) {
		status, _, err := mentorSess.do(http.MethodPost, "/requests/"+requestID+"/mentor/approve", nil)
		return status, err
	})
	ok = ok && run("hod login", func() (int, error) {
		return hodSess.login(credentials{ID: hod, Password: password})
	})
	ok = ok && run("hod approve", func() (int, error) {
		status, _, err := hodSess.do(http.MethodPost, "/requests/"+requestID+"/hod/approve", nil)
		return status, err
	})
	ok = ok && run("guard login", func() (int, error) {
		return guardSess.login(credentials{ID: guard, Password: password})
	})
	ok = ok && run("guard sees request", func() (int, error) {
		status, body, err := guardSess.do(http.MethodGet, "/requests/guard/approved", nil)
		if err != nil {
			return status, err
		}
		if !strings.Contains(string(body), requestID) {
			return status, fmt.Errorf("request %s missing from guard listing", requestID)
		}
		return status, nil
	})
	ok = ok && run("mark exit", func() (int, error) {
		status, _, err := guardSess.do(http.MethodPost, "/requests/"+requestID+"/exit", nil)
		return status, err
	})

	printReport(results)
	if !ok {
		os.Exit(1)
	}
}

func (s *session) login(creds credentials) (int, error) {
	status, body, err := s.do(http.MethodPost, "/auth/login", creds)
	if err != nil {
		return status, err
	}
	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return status, fmt.Errorf("decode login response: %w", err)
	}
	if envelope.Data.AccessToken == "" {
		return status, fmt.Errorf("login returned no access token")
	}
	s.token = envelope.Data.AccessToken
	return status, nil
}

func (s *session) do(method, path string, payload interface{}) (int, []byte, error) {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, strings.TrimRight(s.base, "/")+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, buf.Bytes(), fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, buf.String())
	}
	return resp.StatusCode, buf.Bytes(), nil
}

func extractID(body []byte) (string, error) {
	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if envelope.Data.ID == "" {
		return "", fmt.Errorf("create response carried no request id")
	}
	return envelope.Data.ID, nil
}

func printReport(results []stepResult) {
	fmt.Println("Workflow Smoke Report")
	fmt.Println("=====================")
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s\n", status, res.Name)
		fmt.Printf("  HTTP %d (%s)\n", res.Status, res.Duration)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
		}
	}
}
