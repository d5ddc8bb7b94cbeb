package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/npy"
	"github.com/DRSN-tech/clip-backend/pkg/vecmath"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print model hyperparameters",
	RunE:  runInfo,
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score how well a text describes an image",
	Long:  "Cosine similarity between the normalized text and image embeddings.",
	RunE:  runScore,
}

var zslCmd = &cobra.Command{
	Use:   "zsl",
	Short: "Zero-shot image classification",
	Long:  "Softmax probabilities of the given labels for the image, highest first.",
	RunE:  runZSL,
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Write an image or text embedding to a .npy file",
	RunE:  runEncode,
}

var similarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Compare two embeddings saved by encode",
	RunE:  runSimilarity,
}

// Flags
var (
	imagePath string
	text      string
	labels    []string
	topK      int
	outPath   string
	normalize bool
	vectorA   string
	vectorB   string
)

func init() {
	scoreCmd.Flags().StringVar(&imagePath, "image", "", "path to the image")
	scoreCmd.Flags().StringVar(&text, "text", "", "text to score")
	_ = scoreCmd.MarkFlagRequired("image")
	_ = scoreCmd.MarkFlagRequired("text")

	zslCmd.Flags().StringVar(&imagePath, "image", "", "path to the image")
	zslCmd.Flags().StringArrayVar(&labels, "label", nil, "candidate label, repeat for each label")
	zslCmd.Flags().IntVar(&topK, "top-k", 0, "print only the k most probable labels")
	_ = zslCmd.MarkFlagRequired("image")
	_ = zslCmd.MarkFlagRequired("label")

	encodeCmd.Flags().StringVar(&imagePath, "image", "", "path to the image")
	encodeCmd.Flags().StringVar(&text, "text", "", "text to encode")
	encodeCmd.Flags().StringVarP(&outPath, "output", "o", "", "output .npy file (img_vec.npy or text_vec.npy)")
	encodeCmd.Flags().BoolVar(&normalize, "normalize", true, "L2-normalize the embedding")
	encodeCmd.MarkFlagsMutuallyExclusive("image", "text")
	encodeCmd.MarkFlagsOneRequired("image", "text")

	similarityCmd.Flags().StringVar(&vectorA, "a", "", "first .npy embedding")
	similarityCmd.Flags().StringVar(&vectorB, "b", "", "second .npy embedding")
	_ = similarityCmd.MarkFlagRequired("a")
	_ = similarityCmd.MarkFlagRequired("b")
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, err := globalClip.ModelInfo(cmd.Context())
	if err != nil {
		return err
	}

	out := map[string]any{
		"model_path":     info.Path,
		"backend":        globalConfig.Backend,
		"projection_dim": info.ProjectionDim(),
		"vision":         info.Vision,
		"text":           info.Text,
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(out)
}

func runScore(cmd *cobra.Command, args []string) error {
	img, err := readImage(imagePath)
	if err != nil {
		return err
	}

	res, err := globalClip.CompareTextImage(cmd.Context(), usecase.NewCompareReq(text, *img))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Similarity score = %.3f\n", res.Score)
	return nil
}

func runZSL(cmd *cobra.Command, args []string) error {
	img, err := readImage(imagePath)
	if err != nil {
		return err
	}

	result, err := globalClip.ZeroShotClassify(cmd.Context(), usecase.NewClassifyReq(*img, labels, topK))
	if err != nil {
		return err
	}

	for _, l := range result {
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %.3f\n", l.Text, l.Score)
	}
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	var (
		vec  []float32
		dest = outPath
	)

	if imagePath != "" {
		img, err := readImage(imagePath)
		if err != nil {
			return err
		}
		embs, err := globalClip.EncodeImages(cmd.Context(), usecase.NewEncodeImagesReq([]usecase.UploadedImage{*img}, normalize))
		if err != nil {
			return err
		}
		vec = embs[0].Vector
		if dest == "" {
			dest = "img_vec.npy"
		}
	} else {
		emb, err := globalClip.EncodeText(cmd.Context(), usecase.NewEncodeTextReq(text, normalize))
		if err != nil {
			return err
		}
		vec = emb.Vector
		if dest == "" {
			dest = "text_vec.npy"
		}
	}

	if err := npy.WriteFile(dest, vec); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote (1, %d) embedding to %s\n", len(vec), dest)
	return nil
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	a, err := npy.ReadVector(vectorA)
	if err != nil {
		return err
	}
	b, err := npy.ReadVector(vectorB)
	if err != nil {
		return err
	}

	cos, err := vecmath.Cosine(a, b)
	if err != nil {
		return err
	}
	dot, err := vecmath.Dot(a, b)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "cosine = %.4f\ndot = %.4f\n", cos, dot)
	return nil
}

func readImage(path string) (*usecase.UploadedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return usecase.NewUploadedImage(data, mimeType, int64(len(data)), filepath.Base(path)), nil
}
