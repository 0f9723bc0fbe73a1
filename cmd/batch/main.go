package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/product-vision/internal/app"
	config "github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/spf13/cobra"
)

const closeTimeout = 10 * time.Second

func main() {
	log := logger.NewSlogLogger()

	rootCmd := &cobra.Command{
		Use:           "batch",
		Short:         "Offline extraction of product feature vectors and catalog clustering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	extractCmd := &cobra.Command{
		Use:   "extract [image...]",
		Short: "Extract and store the feature vector of one product",
		Long: `Loads product images (local paths, s3://<key> or minio://<bucket>/<key>),
averages their embeddings and upserts the product_features row.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, log)
		},
	}
	extractCmd.Flags().Int64("product-id", 0, "Product identifier")
	extractCmd.Flags().StringSlice("images", nil, "Image paths or object references")
	_ = extractCmd.MarkFlagRequired("product-id")
	rootCmd.AddCommand(extractCmd)

	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster all stored product vectors into a new version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(cmd, log)
		},
	}
	clusterCmd.Flags().Int("k", 0, "Number of clusters")
	_ = clusterCmd.MarkFlagRequired("k")
	rootCmd.AddCommand(clusterCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Errorf(err, "batch command failed")
		stop()
		os.Exit(1)
	}
}

func runExtract(cmd *cobra.Command, args []string, log logger.Logger) error {
	productID, _ := cmd.Flags().GetInt64("product-id")
	images, _ := cmd.Flags().GetStringSlice("images")
	images = append(images, args...)

	return withBatch(cmd.Context(), log, func(ctx context.Context, b *app.Batch) error {
		res, err := b.ProductFeatures.ExtractProductFeature(ctx, &usecase.ExtractProductFeatureReq{
			ProductID: productID,
			Images:    images,
		})
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}

		log.Infof("product %d: stored %d-dim vector from %d image(s), skipped %d, mirrored: %t",
			res.ProductID, res.Dim, res.ImagesProcessed, len(res.Skipped), res.Mirrored)
		return nil
	})
}

func runCluster(cmd *cobra.Command, log logger.Logger) error {
	k, _ := cmd.Flags().GetInt("k")

	return withBatch(cmd.Context(), log, func(ctx context.Context, b *app.Batch) error {
		res, err := b.Clusters.RunClustering(ctx, &usecase.RunClusteringReq{K: k})
		if err != nil {
			return clusterError(err, log)
		}

		log.Infof("cluster version %d: k=%d, products=%d, skipped=%d",
			res.Version, res.K, res.Products, res.SkippedProducts)
		if res.PrunedUpTo > 0 {
			log.Infof("versions up to %d removed by retention", res.PrunedUpTo)
		}

		// версия уже сохранена, сбой отправки не делает запуск неуспешным
		if err := b.PublishEvents(ctx); err != nil {
			log.Warnf("cluster version event left in outbox: %v", err)
		}
		return nil
	})
}

// clusterError превращает пустой каталог в штатное завершение: кластеризовать нечего.
func clusterError(err error, log logger.Logger) error {
	if errors.Is(err, e.ErrNoFeatures) {
		log.Infof("no product features found, nothing to cluster")
		return nil
	}
	return e.Wrap(whereami.WhereAmI(), err)
}

// withBatch загружает конфигурацию CLI, собирает зависимости и закрывает их после fn.
func withBatch(ctx context.Context, log logger.Logger, fn func(ctx context.Context, b *app.Batch) error) (err error) {
	cfg, err := config.LoadBatch(log)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	b, err := app.NewBatch(ctx, cfg, log)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := b.Close(closeCtx); cerr != nil {
			log.Warnf("%v", cerr)
		}
	}()

	return fn(ctx, b)
}
