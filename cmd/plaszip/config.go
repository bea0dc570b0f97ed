package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v6/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/plaszip/plaszip/pkg/stage"
)

// S3Creds holds one S3 endpoint's credential configuration, keyed in
// Config.S3Credentials by "scheme://host" so one config file can serve
// several S3-compatible endpoints used for -i/-o staging.
type S3Creds struct {
	AccessKey          string `json:"access-key,omitempty"`
	SecretKey          string `json:"secret-key,omitempty"`
	AwsCredentialsFile string `json:"aws-credentials-file,omitempty"`
	AwsProfile         string `json:"aws-profile,omitempty"`
	// An explicit region avoids a round trip for region discovery.
	AwsRegion string `json:"aws-region,omitempty"`
}

// Config is plaszip's persisted configuration: defaults for peer count,
// chunk size and the credentials pkg/stage's S3 backend needs when a job's
// -i/-o names an s3+http(s):// location, mirroring the teacher's own
// cmd/desync/config.go Config/S3Creds split.
type Config struct {
	Peers         int                `json:"peers"`
	ChunkSize     uint64             `json:"chunk-size"`
	S3Credentials map[string]S3Creds `json:"s3-credentials"`
}

// GetS3CredentialsFor resolves credentials and region for an S3 location,
// preferring the environment (S3_ACCESS_KEY/S3_SECRET_KEY/S3_REGION), then
// falling back to this config's S3Credentials entry keyed by scheme+host.
func (c Config) GetS3CredentialsFor(u *url.URL) (*credentials.Credentials, string) {
	accessKey := os.Getenv("S3_ACCESS_KEY")
	region := os.Getenv("S3_REGION")
	secretKey := os.Getenv("S3_SECRET_KEY")
	if accessKey != "" || secretKey != "" {
		return stage.NewStaticCredentials(accessKey, secretKey), region
	}

	key := &url.URL{
		Scheme: strings.TrimPrefix(u.Scheme, "s3+"),
		Host:   u.Host,
	}
	credsConfig := c.S3Credentials[key.String()]
	region = credsConfig.AwsRegion

	if credsConfig.AccessKey != "" {
		return stage.NewStaticCredentials(credsConfig.AccessKey, credsConfig.SecretKey), region
	}
	if credsConfig.AwsCredentialsFile != "" {
		return stage.NewRefreshableSharedCredentials(credsConfig.AwsCredentialsFile, credsConfig.AwsProfile, time.Now), region
	}
	return stage.NewStaticCredentials("", ""), region
}

// cfg is the global config in use for the current process, defaults first,
// then overridden by loadConfigIfPresent.
var cfg = Config{
	Peers:     1,
	ChunkSize: 50000,
}

const configUsage = `plaszip config

Shows the current internal config settings, either the defaults or the
values from $HOME/.config/plaszip/config.json. The output can be used to
create a custom config file by writing it to that path.
`

func newConfigCommand() *cobra.Command {
	var writeConfig bool
	cmd := &cobra.Command{
		Use:          "config",
		Short:        "Show the effective configuration",
		Long:         configUsage,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(writeConfig)
		},
	}
	cmd.Flags().BoolVarP(&writeConfig, "write", "w", false, "write current configuration to $HOME/.config/plaszip/config.json")
	return cmd
}

func showConfig(writeConfig bool) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if writeConfig {
		filename, err := configFile()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return err
		}
		defer f.Close()
		fmt.Println("Writing config to", filename)
		w = f
	}
	_, err = w.Write(b)
	fmt.Println()
	return err
}

func configFile() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(u.HomeDir, ".config", "plaszip", "config.json"), nil
}

// loadConfigIfPresent overlays $HOME/.config/plaszip/config.json onto cfg
// if it exists; values it doesn't set keep their defaults.
func loadConfigIfPresent() error {
	filename, err := configFile()
	if err != nil {
		return err
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrap(json.NewDecoder(f).Decode(&cfg), "reading "+filename)
}
