package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	wfv1 "github.com/argoproj/argo-workflows/v3/pkg/apis/workflow/v1alpha1"
	"github.com/spf13/cobra"
	adst "go.airbusds-geo.com/gcp/storage"
	"google.golang.org/api/iterator"
	k8sv1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	k8smeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

var defaultImage string = "build-error-this-variable-should-have-been-set-on-build"
var dockerImage string
var parallelism int
var shell bool

var planCmd = &cobra.Command{
	Use:   "plan directory|gs://bucket/prefix",
	Short: "emit an argo workflow repairing every matching file",
	Long: `plan lists the files matching --pattern under a local directory or a
gs:// prefix and prints an argo workflow yaml running one tiffmend repair
per file. The workflow is printed to stdout, nothing is repaired.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := listInputs(cmd.Context(), args[0], pattern)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files matching %q under %s", pattern, args[0])
		}
		commands := make([][]string, len(files))
		for i, f := range files {
			command := []string{"tiffmend", f, "-c", compression}
			if cogLayout {
				command = append(command, "--cog")
			}
			if switches != "" {
				command = append(command, "--switches", switches)
			}
			commands[i] = command
		}
		if shell {
			for _, command := range commands {
				fmt.Println(printCommand(command))
			}
			return nil
		}
		wf := buildWorkflow(commands)
		yb, err := yaml.Marshal(wf)
		if err != nil {
			return fmt.Errorf("marshal workflow: %w", err)
		}
		fmt.Println(string(yb))
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&dockerImage, "dockerImage", defaultImage, "docker image for workers")
	planCmd.Flags().IntVar(&parallelism, "parallelism", 8, "maximum number of concurrent repairs")
	planCmd.Flags().BoolVar(&shell, "shell", false, "output shell script instead of argo workflow")
	planCmd.Flags().BoolVar(&cogLayout, "cog", false, "rewrite the repaired files with a cloud optimized layout")
}

func listInputs(ctx context.Context, root, pattern string) ([]string, error) {
	if strings.HasPrefix(root, "gs://") {
		bucket, prefix, err := adst.Parse(root)
		if err != nil {
			return nil, fmt.Errorf("invalid prefix %s: %w", root, err)
		}
		var files []string
		it := stcl.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", root, err)
			}
			ok, err := path.Match(pattern, path.Base(attrs.Name))
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			if ok {
				files = append(files, fmt.Sprintf("gs://%s/%s", bucket, attrs.Name))
			}
		}
		return files, nil
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return filepath.Glob(filepath.Join(root, pattern))
}

func buildWorkflow(commands [][]string) *wfv1.Workflow {
	wf := &wfv1.Workflow{
		ObjectMeta: k8smeta.ObjectMeta{
			GenerateName: "tiffmend-",
		},
		TypeMeta: k8smeta.TypeMeta{
			APIVersion: "argoproj.io/v1alpha1",
			Kind:       "Workflow",
		},
		Spec: wfv1.WorkflowSpec{
			TTLStrategy: &wfv1.TTLStrategy{
				SecondsAfterSuccess: int32Ptr(3600),
			},
			Entrypoint: "repair",
			TemplateDefaults: &wfv1.Template{
				Volumes: []k8sv1.Volume{
					{
						Name: "scratch",
						VolumeSource: k8sv1.VolumeSource{
							EmptyDir: &k8sv1.EmptyDirVolumeSource{
								SizeLimit: resourcePtr("10G"),
							},
						},
					},
				},
				Container: &k8sv1.Container{
					ImagePullPolicy: k8sv1.PullAlways,
					Resources: k8sv1.ResourceRequirements{
						Requests: k8sv1.ResourceList{
							k8sv1.ResourceCPU:    resource.MustParse("2"),
							k8sv1.ResourceMemory: resource.MustParse("2G"),
						},
					},
					WorkingDir: "/scratch",
					VolumeMounts: []k8sv1.VolumeMount{
						{
							Name:      "scratch",
							MountPath: "/scratch",
						},
					},
				},
			},
			Templates: []wfv1.Template{
				{Name: "repair"},
			},
		},
	}
	if parallelism > 0 {
		wf.Spec.Parallelism = int64Ptr(int64(parallelism))
	}
	ps := wfv1.ParallelSteps{}
	for i, command := range commands {
		ps.Steps = append(ps.Steps, wfv1.WorkflowStep{
			Name: fmt.Sprintf("repair-%d", i),
			Inline: &wfv1.Template{
				RetryStrategy: &wfv1.RetryStrategy{
					Limit: intOrStringPtr(3),
				},
				Container: &k8sv1.Container{
					Name:    "repair",
					Image:   dockerImage,
					Command: command,
				},
			},
		})
	}
	wf.Spec.Templates[0].Steps = append(wf.Spec.Templates[0].Steps, ps)
	return wf
}

func int32Ptr(val int32) *int32 {
	a := val
	return &a
}

func int64Ptr(val int64) *int64 {
	a := val
	return &a
}

func intOrStringPtr(val int) *intstr.IntOrString {
	a := intstr.FromInt(val)
	return &a
}

func resourcePtr(val string) *resource.Quantity {
	res := resource.MustParse(val)
	return &res
}

func printCommand(cmd []string) string {
	sb := strings.Builder{}
	for i, c := range cmd {
		if i != 0 {
			fmt.Fprintf(&sb, " ")
		}
		fmt.Fprintf(&sb, "%q", c)
	}
	return sb.String()
}
