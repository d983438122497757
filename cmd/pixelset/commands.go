package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/export"
	"github.com/banshee-data/pixelset/internal/fsutil"
	"github.com/banshee-data/pixelset/internal/grid"
	"github.com/banshee-data/pixelset/internal/network"
	"github.com/banshee-data/pixelset/internal/timeutil"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories, their images and the training selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			selected := make(map[string]bool)
			for _, name := range w.Selected() {
				selected[name] = true
			}
			for _, c := range w.Categories() {
				mark := " "
				if selected[c.Name] {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s (%d)\n", mark, c.Name, len(c.Images))
				for i, img := range c.Images {
					rows, cols := img.Grid.Dims()
					fmt.Fprintf(out, "    %d: %s %dx%d\n", i, img.Name, rows, cols)
				}
			}
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create CATEGORY",
		Short: "Create an empty category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			return w.CreateCategory(cmd.Context(), args[0])
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a category in the local cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			return w.RenameCategory(args[0], args[1])
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete CATEGORY",
		Short: "Delete a category and its images",
		Long: `Delete a category and its images on the remote store, then locally.
Deletes need the remote store, so they fail with --offline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			confirm := dataset.Always
			if !yes {
				confirm = prompt(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return w.DeleteCategory(cmd.Context(), args[0], confirm)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask before deleting a non-empty category")
	return cmd
}

func prompt(in io.Reader, out io.Writer) dataset.Confirm {
	return func(category string, images int) bool {
		fmt.Fprintf(out, "Delete %q and its %d images? [y/N]: ", category, images)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.TrimSpace(answer)
		return answer == "y" || answer == "Y"
	}
}

func readGrid(path string) (grid.Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return dataset.DecodeGrid(string(data))
}

func newSaveCmd(a *app) *cobra.Command {
	var gridPath string
	cmd := &cobra.Command{
		Use:   "save CATEGORY NAME",
		Short: "Save a grid as a named image",
		Long: `Save a grid read from a JSON file (an array of rows of colour names) as an
image. The category must already exist and the name must not be taken in
it; overwrite an image by deleting it first.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readGrid(gridPath)
			if err != nil {
				return err
			}
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			if err := w.SetGrid(m); err != nil {
				return err
			}
			return w.SaveImage(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&gridPath, "grid", "", "JSON file holding the grid")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}

func imageArgs(args []string) (string, int, error) {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("image index %q: %w", args[1], err)
	}
	return args[0], index, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show CATEGORY INDEX",
		Short: "Print a saved image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, index, err := imageArgs(args)
			if err != nil {
				return err
			}
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			if err := w.LoadImage(category, index); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), render(w.Grid()))
			return nil
		},
	}
}

// render draws painted cells as '#' and blank ones as '.'.
func render(m grid.Matrix) string {
	var b strings.Builder
	for _, row := range m.Painted() {
		for _, painted := range row {
			if painted {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func newDeleteImageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-image CATEGORY INDEX",
		Short: "Delete one image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, index, err := imageArgs(args)
			if err != nil {
				return err
			}
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			return w.DeleteImage(cmd.Context(), category, index)
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload every local category and image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			return w.SaveAll(cmd.Context())
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every image as a PNG under a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.GetExportDir()
			}
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			written, err := export.NewExporter(fsutil.OSFileSystem{}, dir).Export(w.Categories())
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d images to %s\n", len(written), dir)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default from config, else ./export)")
	return cmd
}

func newTrainCmd(a *app) *cobra.Command {
	var (
		selectNames []string
		hidden      []int
		activation  string
		lrExp       int
	)
	cmd := &cobra.Command{
		Use:   "train NAME",
		Short: "Train a model on the selected categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range selectNames {
				if !w.ToggleSelection(name) {
					// it was already selected
					w.ToggleSelection(name)
				}
			}
			err = w.UpdateNetwork(func(n *network.Network) error {
				for _, neurons := range hidden {
					layer, err := n.AddLayer()
					if err != nil {
						return err
					}
					for i := 1; i < neurons; i++ {
						if err := n.AddNeuron(layer); err != nil {
							return err
						}
					}
					if activation != "" {
						if err := n.SetActivation(layer, network.Activation(activation)); err != nil {
							return err
						}
					}
				}
				if cmd.Flags().Changed("lr-exp") {
					return n.SetLearningRateExponent(lrExp)
				}
				return nil
			})
			if err != nil {
				return err
			}
			res, err := w.Train(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s accuracy=%.4f loss=%.4f\n", res.Status, res.Accuracy, res.Loss)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&selectNames, "select", nil, "Categories to train on (added to the saved selection)")
	cmd.Flags().IntSliceVar(&hidden, "hidden", nil, "Neurons per hidden layer, e.g. --hidden 8,4")
	cmd.Flags().StringVar(&activation, "activation", "", "Activation of the hidden layers: sigmoid, tanh, relu or softmax")
	cmd.Flags().IntVar(&lrExp, "lr-exp", -3, "Learning rate exponent (rate = 10^exp)")
	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List trained models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			models, err := w.Models(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.4f\n", m.ID, m.Name, m.Accuracy)
			}
			return nil
		},
	}
}

func newPredictCmd(a *app) *cobra.Command {
	var gridPath string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify a grid with the latest model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readGrid(gridPath)
			if err != nil {
				return err
			}
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			if err := w.SetGrid(m); err != nil {
				return err
			}
			pred, err := w.Predict(cmd.Context())
			if err != nil {
				return err
			}
			for i, p := range pred {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.4f\n", i, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gridPath, "grid", "", "JSON file holding the grid")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the local cache reconciled with the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				interval = a.cfg.GetReconcileInterval()
			}
			if interval <= 0 {
				interval = 30 * time.Second
			}
			w, err := a.workspace(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching every %s: %s\n", interval, w)
			err = w.Watch(cmd.Context(), timeutil.RealClock{}, interval)
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Reconcile interval (default from config, else 30s)")
	return cmd
}
