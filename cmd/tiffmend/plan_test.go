package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"sigs.k8s.io/yaml"
)

func TestBuildWorkflow(t *testing.T) {
	dockerImage = "eu.gcr.io/project/tiffmend:v1"
	parallelism = 4
	commands := [][]string{
		{"tiffmend", "gs://bucket/a.tif", "-c", "DEFLATE"},
		{"tiffmend", "gs://bucket/b.tif", "-c", "DEFLATE", "--cog"},
	}
	wf := buildWorkflow(commands)

	assert.Equal(t, "tiffmend-", wf.ObjectMeta.GenerateName)
	assert.Equal(t, "Workflow", wf.TypeMeta.Kind)
	assert.Equal(t, "argoproj.io/v1alpha1", wf.TypeMeta.APIVersion)
	assert.Equal(t, "repair", wf.Spec.Entrypoint)
	if assert.NotNil(t, wf.Spec.Parallelism) {
		assert.Equal(t, int64(4), *wf.Spec.Parallelism)
	}
	if assert.NotNil(t, wf.Spec.TTLStrategy) {
		assert.Equal(t, int32(3600), *wf.Spec.TTLStrategy.SecondsAfterSuccess)
	}

	if !assert.Len(t, wf.Spec.Templates, 1) {
		t.FailNow()
	}
	if !assert.Len(t, wf.Spec.Templates[0].Steps, 1) {
		t.FailNow()
	}
	steps := wf.Spec.Templates[0].Steps[0].Steps
	if !assert.Len(t, steps, len(commands)) {
		t.FailNow()
	}
	assert.Equal(t, "repair-0", steps[0].Name)
	assert.Equal(t, "repair-1", steps[1].Name)
	for i, step := range steps {
		if !assert.NotNil(t, step.Inline) {
			continue
		}
		assert.Equal(t, dockerImage, step.Inline.Container.Image)
		assert.Equal(t, commands[i], step.Inline.Container.Command)
		assert.NotNil(t, step.Inline.RetryStrategy)
	}

	_, err := yaml.Marshal(wf)
	assert.NoError(t, err)
}

func TestBuildWorkflowNoParallelism(t *testing.T) {
	parallelism = 0
	wf := buildWorkflow([][]string{{"tiffmend", "a.tif"}})
	assert.Nil(t, wf.Spec.Parallelism)
}

func TestPrintCommand(t *testing.T) {
	out := printCommand([]string{"tiffmend", "gs://bucket/a.tif", "-c", "DEFLATE"})
	assert.Equal(t, `"tiffmend" "gs://bucket/a.tif" "-c" "DEFLATE"`, out)
}

func TestListInputsLocal(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.tif", "b.tif", "c.nc"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()

	files, err := listInputs(ctx, dir, "*.tif")
	assert.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.tif"),
		filepath.Join(dir, "b.tif"),
	}, files)

	files, err = listInputs(ctx, dir, "*.jp2")
	assert.NoError(t, err)
	assert.Len(t, files, 0)

	_, err = listInputs(ctx, filepath.Join(dir, "a.tif"), "*.tif")
	assert.Error(t, err)
	_, err = listInputs(ctx, filepath.Join(dir, "missing"), "*.tif")
	assert.Error(t, err)
}
