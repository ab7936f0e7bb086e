package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/marketplace-client/internal/constants"
	"github.com/quantumauth-io/marketplace-client/internal/metrics"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Observer sees every task change of a run, in order.
type Observer func(task UploadTask)

// Pipeline pins assets one after another, then the manifest that links them.
type Pipeline struct {
	store    Store
	gateway  string
	required []AssetKind
	observer Observer
	recorder metrics.Recorder
}

type PipelineOption func(*Pipeline)

// WithRequiredAssets replaces the default requirement of one image and one audio asset.
func WithRequiredAssets(kinds ...AssetKind) PipelineOption {
	return func(p *Pipeline) { p.required = kinds }
}

func WithObserver(obs Observer) PipelineOption {
	return func(p *Pipeline) { p.observer = obs }
}

func WithRecorder(r metrics.Recorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

func NewPipeline(store Store, gateway string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:    store,
		gateway:  strings.TrimRight(strings.TrimSpace(gateway), "/"),
		required: []AssetKind{AssetImage, AssetAudio},
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// URL is the gateway address of a content id.
func (p *Pipeline) URL(contentID string) string {
	return p.gateway + "/" + contentID
}

func (p *Pipeline) Validate(c Content) error {
	fields := map[string]string{}
	if strings.TrimSpace(c.Name) == "" {
		fields["name"] = "Required"
	}

	seen := map[AssetKind]bool{}
	for _, a := range c.Assets {
		if a.Kind != AssetImage && a.Kind != AssetAudio {
			fields["assets"] = "unsupported asset kind " + a.Kind.String()
			continue
		}
		if seen[a.Kind] {
			fields[a.Kind.String()] = "only one allowed"
			continue
		}
		seen[a.Kind] = true
		if len(a.Bytes) == 0 {
			fields[a.Kind.String()] = "empty file"
		}
	}
	for _, kind := range p.required {
		if !seen[kind] {
			fields[kind.String()] = "Required"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Run validates c, uploads its assets in order and then the manifest. The first failed upload
// stops the run with a *PinError; nothing is uploaded after it.
// observers see this run's task changes in addition to the pipeline's own observer.
func (p *Pipeline) Run(ctx context.Context, c Content, observers ...Observer) (Result, error) {
	if err := p.Validate(c); err != nil {
		return Result{}, err
	}

	emit := func(task UploadTask) {
		p.emit(task)
		for _, obs := range observers {
			obs(task)
		}
	}

	tasks := make([]UploadTask, 0, len(c.Assets)+1)
	for _, a := range c.Assets {
		tasks = append(tasks, UploadTask{Kind: a.Kind, FileName: a.FileName, Size: int64(len(a.Bytes)), State: TaskPending})
	}

	res := Result{
		ContentIDs: make(map[AssetKind]string, len(c.Assets)+1),
		URLs:       make(map[AssetKind]string, len(c.Assets)+1),
	}
	manifest := Manifest{Name: c.Name, Description: c.Description}

	for i, a := range c.Assets {
		cid, err := p.upload(ctx, &tasks[i], a.Bytes, emit)
		if err != nil {
			res.Tasks = tasks
			return res, &PinError{Kind: UploadFailed, Asset: a.Kind, Cause: err}
		}

		url := tasks[i].URL
		res.ContentIDs[a.Kind] = cid
		res.URLs[a.Kind] = url
		switch a.Kind {
		case AssetImage:
			manifest.ImageURL = url
		case AssetAudio:
			manifest.AudioURL = url
		}
	}

	body, err := json.Marshal(manifest)
	if err != nil {
		return res, &PinError{Kind: UploadFailed, Asset: AssetManifest, Cause: errors.Wrap(err, "encode manifest")}
	}

	tasks = append(tasks, UploadTask{Kind: AssetManifest, FileName: constants.ManifestFileName, Size: int64(len(body)), State: TaskPending})
	last := len(tasks) - 1
	cid, err := p.upload(ctx, &tasks[last], body, emit)
	res.Tasks = tasks
	if err != nil {
		return res, &PinError{Kind: UploadFailed, Asset: AssetManifest, Cause: err}
	}

	res.ContentIDs[AssetManifest] = cid
	res.URLs[AssetManifest] = tasks[last].URL
	res.TokenURI = tasks[last].URL

	log.Info("mint content pinned", "name", c.Name, "token_uri", res.TokenURI)
	return res, nil
}

func (p *Pipeline) upload(ctx context.Context, task *UploadTask, data []byte, emit Observer) (string, error) {
	if err := ctx.Err(); err != nil {
		task.State = TaskFailed
		emit(*task)
		return "", err
	}

	task.State = TaskUploading
	emit(*task)

	total := int64(len(data))
	start := time.Now()
	cid, err := p.store.Add(ctx, task.FileName, bytes.NewReader(data), total, func(sent, size int64) {
		if size <= 0 {
			size = total
		}
		task.Sent = sent
		if size > 0 {
			task.Progress = float64(sent) / float64(size)
			if task.Progress > 1 {
				task.Progress = 1
			}
		}
		emit(*task)
	})
	if err == nil && strings.TrimSpace(cid) == "" {
		err = errors.New("store returned an empty content id")
	}
	if err != nil {
		task.State = TaskFailed
		emit(*task)
		log.Error("upload failed", "asset", task.Kind.String(), "file", task.FileName, "error", err)
		p.recorder.PinOutcome(task.Kind.String(), string(TaskFailed), task.Sent, time.Since(start))
		return "", err
	}

	task.Sent = total
	task.Progress = 1
	task.State = TaskDone
	task.ContentID = cid
	task.URL = p.URL(cid)
	emit(*task)
	p.recorder.PinOutcome(task.Kind.String(), string(TaskDone), total, time.Since(start))
	return cid, nil
}

func (p *Pipeline) emit(task UploadTask) {
	if p.observer != nil {
		p.observer(task)
	}
}
