package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/zbucket/internal/config"
	"github.com/zzenonn/zbucket/internal/layout"
	"github.com/zzenonn/zbucket/internal/logging"
	"github.com/zzenonn/zbucket/internal/placement"
	"github.com/zzenonn/zbucket/internal/repository/db"
	"github.com/zzenonn/zbucket/internal/repository/objectstore"
	"github.com/zzenonn/zbucket/internal/service"
)

var (
	cfgFile string
	cfg     *config.Config
	placer  *placement.BucketPlacer
)

var rootCmd = &cobra.Command{
	Use:   "zbucket",
	Short: "Bucket-layout object placement across S3, GCS and in-memory subvolumes",
	Long: `zbucket routes objects to storage backends with a static bucket layout.
The upper 16 bits of every object GFID select one of 65536 buckets, and the
buckets are dealt round-robin over the configured, ordered subvolume list.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.Root())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if placer != nil {
			placer.Close()
		}
		if cfg != nil {
			cfg.Close()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the object metadata table",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := newDatabase()
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}

		if err := dynamoDb.MigrateDb(context.Background()); err != nil {
			fmt.Printf("Failed to migrate the database: %v\n", err)
			return
		}

		fmt.Println("Database initialized and migrated successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop the object metadata table",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := newDatabase()
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}

		if err := dynamoDb.MigrateDown(context.Background()); err != nil {
			fmt.Printf("Failed to roll back migrations: %v\n", err)
			return
		}

		fmt.Println("Database migrations rolled back successfully")
	},
}

// initConfig loads configuration and builds the placement layout.
func initConfig(root *cobra.Command) error {
	var err error
	cfg, err = config.LoadConfig(cfgFile, root)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logging.InitLogger(cfg)

	placer, err = newPlacer(cfg)
	return err
}

// newPlacer registers one repository per configured subvolume, in order, and
// builds the layout over them.
func newPlacer(cfg *config.Config) (*placement.BucketPlacer, error) {
	bucketConfigs, err := objectstore.ParseBucketConfigs(cfg.Subvolumes)
	if err != nil {
		return nil, err
	}

	factory := objectstore.NewObjectRepositoryFactory(cfg)
	repos, err := factory.CreateRepositories(bucketConfigs)
	if err != nil {
		return nil, err
	}

	p := placement.NewBucketPlacer()
	for _, repo := range repos {
		if err := p.RegisterBucket(repo.Name(), repo); err != nil {
			return nil, err
		}
	}

	err = p.Build(cfg.LayoutType, &layout.Options{
		Buckets: cfg.LayoutBuckets,
		Debug:   cfg.LayoutDebug,
		Logger:  log.WithField("component", "layout"),
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newDatabase() (*db.DynamoDb, error) {
	awsConfig, err := cfg.AWSConfig()
	if err != nil {
		return nil, err
	}
	return db.NewDatabase(awsConfig, cfg.DynamoDBTable)
}

// newObjectService wires the placer to the DynamoDB metadata table.
func newObjectService() (*service.ObjectService, error) {
	dynamoDb, err := newDatabase()
	if err != nil {
		return nil, err
	}
	metadataRepository := db.NewMetadataRepository(dynamoDb.Client, cfg.DynamoDBTable)
	return service.NewObjectService(placer, &metadataRepository), nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to config file (default ./config.yaml)")
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error")
	flags.String("layout-type", "", "Layout strategy tag (default static-bucket)")
	flags.Int("layout-buckets", 0, "Bucket table length (default 65536)")
	flags.Bool("layout-debug", false, "Log the first buckets of the table after building it")
	flags.StringSlice("subvolumes", nil, "Ordered subvolume list, e.g. s3://a,gs://b,mem://c")
	flags.String("dynamodb-table", "", "Object metadata table")
	flags.Int("data-shards", 0, "Number of data shards for erasure coding (default 4)")
	flags.Int("parity-shards", 0, "Number of parity shards for erasure coding (default 2)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
