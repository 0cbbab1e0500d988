package captions_test

import (
	"encoding/json"
	"errors"
	"testing"

	"captions/pkg/client/captions"
)

func TestWireTypes(t *testing.T) {
	t.Parallel()

	data := []byte(`{"jobId":"j1","status":"COMPLETED","stage":"DONE","outputKey":"outputs/j1/captions.vtt"}`)

	var job captions.Job
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Status != captions.StatusCompleted || job.Stage != captions.StageDone || !job.Status.Terminal() {
		t.Fatalf("job = %+v", job)
	}

	stage := captions.StageDispatch.String()
	body, err := json.Marshal(captions.PatchRequest{Stage: &stage})
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"stage":"DISPATCH"}` {
		t.Fatalf("patch body = %s", body)
	}

	if !errors.Is(&captions.APIError{StatusCode: 404}, captions.ErrNotFound) {
		t.Fatal("404 does not match ErrNotFound")
	}
}
