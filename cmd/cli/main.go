package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  cli submit <script-path> [--key=value | --flag]...")
	fmt.Println("  cli status <job-id>")
	fmt.Println("  cli result <job-id>")
	fmt.Println("  cli log <job-id> [tail]")
	fmt.Println("  cli cancel <job-id>")
	fmt.Println("  cli list [status]")
	fmt.Println("  cli predict-structure [--sync] --sequence=<seq> [--output=<dir>]")
	fmt.Println("  cli predict-affinity [--sync] --protein-seq=<seq> --ligand-smiles=<smiles> [--output=<dir>]")
	fmt.Println("  cli examples")
	fmt.Println()
	fmt.Println("Server address comes from BOLTZ_SERVER (default http://localhost:8080).")
	os.Exit(1)
}

func serverURL() string {
	if v := os.Getenv("BOLTZ_SERVER"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:8080"
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "submit":
		if len(os.Args) < 3 {
			usage()
		}
		args := map[string]interface{}{}
		for _, raw := range os.Args[3:] {
			key, value := parseFlag(raw)
			args[key] = value
		}
		post("/api/jobs", map[string]interface{}{
			"script_path": os.Args[2],
			"args":        args,
			"job_name":    "cli_submit",
		})

	case "status":
		get("/api/jobs/" + arg(2))

	case "result":
		get("/api/jobs/" + arg(2) + "/result")

	case "log":
		path := "/api/jobs/" + arg(2) + "/log"
		if len(os.Args) > 3 {
			path += "?tail=" + url.QueryEscape(os.Args[3])
		}
		get(path)

	case "cancel":
		del("/api/jobs/" + arg(2))

	case "list":
		path := "/api/jobs"
		if len(os.Args) > 2 {
			path += "?status=" + url.QueryEscape(os.Args[2])
		}
		get(path)

	case "predict-structure":
		post(predictPath("/api/predict/structure"), predictBody())

	case "predict-affinity":
		post(predictPath("/api/predict/affinity"), predictBody())

	case "examples":
		get("/api/examples")

	default:
		usage()
	}
}

func arg(i int) string {
	if len(os.Args) <= i {
		usage()
	}
	return os.Args[i]
}

// parseFlag turns "--key=value" into a string arg and a bare "--key" into a
// boolean flag, mirroring how the server flattens them back.
func parseFlag(raw string) (string, interface{}) {
	raw = strings.TrimLeft(raw, "-")
	if key, value, ok := strings.Cut(raw, "="); ok {
		return key, value
	}
	return raw, true
}

// predictField maps CLI flag spelling onto the JSON field names of the
// predict endpoints.
func predictField(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// predictBody collects the predict flags into a request body, skipping the
// --sync routing flag.
func predictBody() map[string]interface{} {
	body := map[string]interface{}{}
	for _, raw := range os.Args[2:] {
		key, value := parseFlag(raw)
		if key == "sync" {
			continue
		}
		body[predictField(key)] = value
	}
	return body
}

// predictPath appends /sync when --sync was given, blocking until the job
// terminates instead of returning a job id.
func predictPath(base string) string {
	for _, raw := range os.Args[2:] {
		if key, _ := parseFlag(raw); key == "sync" {
			return base + "/sync"
		}
	}
	return base
}

func get(path string) {
	resp, err := http.Get(serverURL() + path)
	if err != nil {
		fail("request failed: %v", err)
	}
	printResponse(resp)
}

func del(path string) {
	req, err := http.NewRequest(http.MethodDelete, serverURL()+path, nil)
	if err != nil {
		fail("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail("request failed: %v", err)
	}
	printResponse(resp)
}

func post(path string, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		fail("encode request: %v", err)
	}
	resp, err := http.Post(serverURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		fail("request failed: %v", err)
	}
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	// Re-indent JSON when possible, pass through otherwise.
	var buf bytes.Buffer
	if json.Indent(&buf, body, "", "  ") == nil {
		fmt.Println(buf.String())
	} else {
		fmt.Println(string(body))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
