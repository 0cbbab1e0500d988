package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"captions/internal/domain/entity"
	"captions/pkg/client/captions"

	"github.com/joho/godotenv"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  captionsctl [-api URL] [-interval D] create")
	fmt.Fprintln(os.Stderr, "  captionsctl [-api URL] [-interval D] get <job-id>")
	fmt.Fprintln(os.Stderr, "  captionsctl [-api URL] [-interval D] upload <job-id> <file>")
	fmt.Fprintln(os.Stderr, "  captionsctl [-api URL] [-interval D] start <job-id>")
	fmt.Fprintln(os.Stderr, "  captionsctl [-api URL] [-interval D] watch <job-id>")
	fmt.Fprintln(os.Stderr, "  captionsctl [-api URL] [-interval D] run <file>")
	os.Exit(2)
}

func main() {
	_ = godotenv.Load("./.env.local")

	defaultAPI := os.Getenv("API_BASE_URL")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	apiURL := flag.String("api", defaultAPI, "captions API base URL")
	interval := flag.Duration("interval", captions.DefaultPollInterval, "poll interval for watch and run")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := captions.NewClient(*apiURL, nil)
	if err := dispatch(ctx, c, *interval, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, c *captions.Client, interval time.Duration, args []string) error {
	need := func(n int) {
		if len(args) != n+1 {
			usage()
		}
	}

	switch args[0] {
	case "create":
		need(0)
		job, err := c.CreateJob(ctx)
		if err != nil {
			return err
		}
		return printJSON(job)
	case "get":
		need(1)
		job, err := c.GetJob(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(job)
	case "upload":
		need(2)
		job, err := upload(ctx, c, args[1], args[2])
		if err != nil {
			return err
		}
		return printJSON(job)
	case "start":
		need(1)
		if err := c.StartJob(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("dispatched", args[1])
		return nil
	case "watch":
		need(1)
		return watch(ctx, c, interval, args[1])
	case "run":
		need(1)
		job, err := c.CreateJob(ctx)
		if err != nil {
			return err
		}
		fmt.Println("created", job.JobID)
		if _, err := upload(ctx, c, job.JobID, args[1]); err != nil {
			return err
		}
		if err := c.StartJob(ctx, job.JobID); err != nil {
			return err
		}
		return watch(ctx, c, interval, job.JobID)
	default:
		usage()
		return nil
	}
}

// upload sends path to a presigned URL and records the key on the job.
func upload(ctx context.Context, c *captions.Client, jobID, path string) (*entity.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	target, err := c.Presign(ctx, jobID, filepath.Base(path), contentType)
	if err != nil {
		return nil, err
	}
	if err := c.Upload(ctx, target, contentType, f, info.Size()); err != nil {
		return nil, err
	}

	stage := entity.StageDispatch.String()
	return c.UpdateJob(ctx, jobID, entity.PatchRequest{InputRef: &target.Key, Stage: &stage})
}

func watch(ctx context.Context, c *captions.Client, interval time.Duration, jobID string) error {
	var last string
	p := captions.NewPoller(c, interval)
	p.OnUpdate = func(job *entity.Job) {
		line := job.Status.String() + " " + job.Stage.String()
		if line != last {
			fmt.Printf("%s  %s\n", job.UpdatedAt.Format(time.RFC3339), line)
			last = line
		}
	}

	job, err := p.Wait(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == entity.StatusFailed {
		return errors.New("job failed: " + job.ErrorMessage)
	}
	fmt.Println("output:", job.OutputRef)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
