package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarRenderer_CountsDocumentsOnce(t *testing.T) {
	// Given: a bar renderer sized to two documents
	buf := &bytes.Buffer{}
	r := NewBarRenderer(NewConfig(buf, WithNoColor(true)))

	// When: one document passes through store twice and another once
	r.UpdateProgress(ProgressEvent{Stage: StageDiscover, Total: 2})
	r.UpdateProgress(ProgressEvent{Stage: StageStore, Total: 2, CurrentFile: "a.txt"})
	r.UpdateProgress(ProgressEvent{Stage: StageStore, Total: 2, CurrentFile: "a.txt"})
	r.UpdateProgress(ProgressEvent{Stage: StageStore, Total: 2, CurrentFile: "b.txt"})

	// Then: the bar advanced once per document
	require.NotNil(t, r.bar)
	assert.Len(t, r.done, 2)
	assert.Equal(t, 2, r.total)
}

func TestBarRenderer_NoTotal_NoBar(t *testing.T) {
	// Given: a bar renderer
	r := NewBarRenderer(NewConfig(&bytes.Buffer{}, WithNoColor(true)))

	// When: events never carry a total
	r.UpdateProgress(ProgressEvent{Stage: StageDiscover, Message: "walking"})

	// Then: no bar is created and Stop is a no-op
	assert.Nil(t, r.bar)
	assert.NoError(t, r.Stop())
}

func TestBarRenderer_ErrorsAndSummary(t *testing.T) {
	// Given: a bar renderer with a running bar
	buf := &bytes.Buffer{}
	r := NewBarRenderer(NewConfig(buf, WithNoColor(true)))
	r.UpdateProgress(ProgressEvent{Stage: StageDiscover, Total: 1})

	// When: reporting an error and completing
	r.AddError(ErrorEvent{File: "bad.pdf", Err: errors.New("conversion failed")})
	r.Complete(CompletionStats{Documents: 0, Failed: 1, Duration: time.Second})

	// Then: both are written
	output := buf.String()
	assert.Contains(t, output, "ERROR: bad.pdf: conversion failed")
	assert.Contains(t, output, "0 documents")
	assert.Contains(t, output, "1 failed")
}
