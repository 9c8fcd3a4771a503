package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"skirmish.dev/internal/persistence/archive"
	"skirmish.dev/internal/persistence/indexdb"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			os.Exit(dbCmd(os.Args[2:]))
		case "remote":
			os.Exit(remoteCmd(os.Args[2:]))
		case "show":
			os.Exit(showCmd(os.Args[2:]))
		}
	}
	os.Exit(listCmd(os.Args[1:]))
}

// listCmd prints run ids found under the data dir, newest first.
func listCmd(args []string) int {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	metas, err := listRuns(filepath.Join(*dataDir, "runs"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		return 1
	}
	for _, m := range metas {
		status := "ok"
		if m.Error != "" {
			status = "error: " + m.Error
		}
		fmt.Printf("%s  %s  seed=%d stages=%d  %s\n", m.RunID, m.Deployment, m.Seed, len(m.Stages), status)
	}
	return 0
}

func listRuns(dir string) ([]archive.RunMeta, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []archive.RunMeta
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		m, err := archive.ReadMeta(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func showCmd(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin show [-data dir] <run id>")
		return 2
	}
	rec := archive.Recorder{DataDir: *dataDir}
	m, err := archive.ReadMeta(rec.RunDir(fs.Arg(0)))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read meta:", err)
		return 1
	}
	return printJSON(m)
}

func dbCmd(args []string) int {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/runs.sqlite)")
	deployment := fs.String("deployment", "", "deployment filter (runs)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		return 1
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		return 1
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	switch q {
	case "runs":
		rows, err := idx.Runs(ctx, *deployment, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			return 1
		}
		return printJSON(rows)
	case "stages":
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: admin db stages <run id>")
			return 2
		}
		rows, err := idx.Stages(ctx, fs.Arg(1))
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			return 1
		}
		return printJSON(rows)
	}
	fmt.Fprintln(os.Stderr, "unknown query:", q)
	return 2
}

// remoteCmd asks a running server's loopback admin API.
func remoteCmd(args []string) int {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/runs"
	if fs.NArg() > 0 {
		u += "/" + url.PathEscape(fs.Arg(0))
	}
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}

func printJSON(v any) int {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		return 1
	}
	fmt.Println(string(b))
	return 0
}
