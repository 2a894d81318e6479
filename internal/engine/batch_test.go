package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/store"
)

func TestStartBatch_EmptyOnlyFiltersAtCreation(t *testing.T) {
	f, cleanup := setupEngine(t,
		docx.TestItem{Heading: 1, Text: "Alpha"},
		docx.TestItem{Text: "a-text"},
		docx.TestItem{Heading: 1, Text: "Beta"},
		docx.TestItem{Heading: 1, Text: "Gamma"},
	)
	defer cleanup()
	f.useStub(&stubClient{})

	_, tree, _ := f.sections.Get(f.doc.ID)
	beta, gamma := tree.Flat[1], tree.Flat[2]

	job, err := f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: f.doc.ID,
		Mode:       model.ModeReplace,
		EmptyOnly:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, job.Total)
	assert.Equal(t, []string{beta.ID, gamma.ID}, []string(job.TargetSections))

	row := waitStatus(t, f.store, job.ID, model.JobStatusCompleted)
	assert.Equal(t, 2, row.Completed)
	assert.Equal(t, 0, row.Failed)

	// The filled section was never touched.
	doc, newTree, _ := f.sections.Get(f.doc.ID)
	assert.Equal(t, "a-text", newTree.Flat[0].ContentText(doc))
	assert.NotEmpty(t, newTree.Flat[1].ContentText(doc))
	assert.NotEmpty(t, newTree.Flat[2].ContentText(doc))
}

func TestStartBatch_ExplicitSelectionKeepsRequestOrder(t *testing.T) {
	f, cleanup := setupEngine(t,
		docx.TestItem{Heading: 1, Text: "Alpha"},
		docx.TestItem{Heading: 1, Text: "Beta"},
		docx.TestItem{Heading: 1, Text: "Gamma"},
	)
	defer cleanup()
	f.useStub(&stubClient{})

	_, tree, _ := f.sections.Get(f.doc.ID)
	alpha, gamma := tree.Flat[0], tree.Flat[2]

	job, err := f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: f.doc.ID,
		Mode:       model.ModeReplace,
		SectionIDs: []string{gamma.ID, alpha.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{gamma.ID, alpha.ID}, []string(job.TargetSections))

	row := waitStatus(t, f.store, job.ID, model.JobStatusCompleted)
	require.Len(t, row.Results, 2)
	assert.Equal(t, gamma.ID, row.Results[0].SectionID)
	assert.Equal(t, alpha.ID, row.Results[1].SectionID)
}

func TestStartBatch_Validation(t *testing.T) {
	f, cleanup := setupEngine(t,
		docx.TestItem{Heading: 1, Text: "Alpha"},
		docx.TestItem{Text: "full"},
	)
	defer cleanup()
	f.useStub(&stubClient{})

	_, err := f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: f.doc.ID, Mode: model.GenerationMode("expand"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E1001")

	_, err = f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: "no-such-doc", Mode: model.ModeReplace,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E1002")

	_, err = f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: f.doc.ID, Mode: model.ModeReplace,
		SectionIDs: []string{"missing_section_1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E3000")

	// Every section already has content, so empty_only leaves nothing.
	_, err = f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: f.doc.ID, Mode: model.ModeReplace, EmptyOnly: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E1001")
}

func TestStartBatch_QueueFull(t *testing.T) {
	f, cleanup := setupEngineWith(t, func(cfg *config.Config) {
		cfg.Generation.QueueSize = 1
	},
		docx.TestItem{Heading: 1, Text: "Alpha"},
		docx.TestItem{Heading: 1, Text: "Beta"},
	)
	defer cleanup()

	stub := &stubClient{started: make(chan string, 16), release: make(chan struct{})}
	f.useStub(stub)

	first, err := f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: f.doc.ID, Mode: model.ModeReplace,
	})
	require.NoError(t, err)

	// The single slot is taken until the first job finishes.
	_, err = f.engine.StartBatch(f.user.ID, BatchRequest{
		DocumentID: f.doc.ID, Mode: model.ModeReplace,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E4002")

	close(stub.release)
	waitStatus(t, f.store, first.ID, model.JobStatusCompleted)

	// The freed slot admits new work again.
	require.Eventually(t, func() bool {
		_, err := f.engine.StartBatch(f.user.ID, BatchRequest{
			DocumentID: f.doc.ID, Mode: model.ModeReplace,
		})
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestControlOps_TransitionRules(t *testing.T) {
	f, cleanup := setupEngine(t,
		docx.TestItem{Heading: 1, Text: "Alpha"},
	)
	defer cleanup()
	ctx := context.Background()

	done := store.CreateTestJob(t, f.store, f.doc.ID, f.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusCompleted
	})
	for _, op := range []func() error{
		func() error { _, err := f.engine.Pause(done.ID, f.user.ID); return err },
		func() error { _, err := f.engine.Resume(done.ID, f.user.ID); return err },
		func() error { _, err := f.engine.Cancel(ctx, done.ID, f.user.ID); return err },
	} {
		err := op()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "E4001")
	}

	// Pending jobs cannot be paused, only running ones.
	pending := store.CreateTestJob(t, f.store, f.doc.ID, f.user.ID)
	_, err := f.engine.Pause(pending.ID, f.user.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E4001")

	// Resume requires a paused job.
	running := store.CreateTestJob(t, f.store, f.doc.ID, f.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusRunning
	})
	_, err = f.engine.Resume(running.ID, f.user.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E4001")

	_, err = f.engine.Pause("no-such-job", f.user.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E4000")

	other := store.CreateTestUser(t, f.store)
	_, err = f.engine.Pause(running.ID, other.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E1004")

	// Cancel lands from running and stamps the terminal state.
	cancelled, err := f.engine.Cancel(ctx, running.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)
}

func TestStatusAndList(t *testing.T) {
	f, cleanup := setupEngine(t,
		docx.TestItem{Heading: 1, Text: "Alpha"},
	)
	defer cleanup()

	j1 := store.CreateTestJob(t, f.store, f.doc.ID, f.user.ID)
	j2 := store.CreateTestJob(t, f.store, f.doc.ID, f.user.ID, func(j *model.GenerationJob) {
		j.Status = model.JobStatusCompleted
	})

	got, err := f.engine.Status(j1.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, j1.ID, got.ID)

	other := store.CreateTestUser(t, f.store)
	_, err = f.engine.Status(j1.ID, other.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E1004")

	_, err = f.engine.Status("no-such-job", f.user.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E4000")

	jobs, total, err := f.engine.List(f.user.ID, "", "", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, jobs, 2)

	jobs, total, err = f.engine.List(f.user.ID, f.doc.ID, string(model.JobStatusCompleted), 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, j2.ID, jobs[0].ID)

	_, total, err = f.engine.List(other.ID, "", "", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}
