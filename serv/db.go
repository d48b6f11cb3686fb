package serv

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const (
	pemSig        = "--BEGIN "
	defaultDBName = "bsonq"
	pingAttempts  = 10
)

// NewDB connects to the configured database and waits until it answers a
// ping.
func NewDB(ctx context.Context, conf *Config, log *zap.Logger, fs afero.Fs) (*mongo.Client, *mongo.Database, error) {
	opts, err := clientOptions(conf, fs)
	if err != nil {
		return nil, nil, err
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("database connect: %w", err)
	}

	err = retry.Do(
		func() error { return ping(ctx, client, conf.DB.PingTimeout) },
		retry.Context(ctx),
		retry.Attempts(pingAttempts),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(2*time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("database ping", zap.Error(err), zap.Uint("attempt", n+1))
		}),
	)
	if err != nil {
		client.Disconnect(ctx) //nolint:errcheck
		return nil, nil, fmt.Errorf("database ping: %w", err)
	}

	name := conf.DB.DBName
	if name == "" {
		name = defaultDBName
	}
	log.Debug("database connected", zap.String("database", name))
	return client, client.Database(name), nil
}

func ping(ctx context.Context, client *mongo.Client, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return client.Ping(ctx, nil)
}

func clientOptions(conf *Config, fs afero.Fs) (*options.ClientOptions, error) {
	opts := options.Client().ApplyURI(connString(conf))

	if conf.AppName != "" {
		opts.SetAppName(conf.AppName)
	}
	if conf.DB.PoolSize != 0 {
		opts.SetMaxPoolSize(conf.DB.PoolSize)
	}
	if conf.DB.ConnectTimeout != 0 {
		opts.SetConnectTimeout(conf.DB.ConnectTimeout)
	}

	if conf.DB.EnableTLS {
		tc, err := tlsConfig(conf, fs)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tc)
	}
	return opts, nil
}

// connString returns the connection string or builds one from the host,
// port and credentials.
func connString(conf *Config) string {
	if cs := conf.DB.ConnString; cs != "" {
		return cs
	}

	host := conf.DB.Host
	if host == "" {
		host = "localhost"
	}
	port := conf.DB.Port
	if port == 0 {
		port = 27017
	}

	u := url.URL{Scheme: "mongodb", Host: fmt.Sprintf("%s:%d", host, port)}
	if conf.DB.User != "" {
		u.User = url.UserPassword(conf.DB.User, conf.DB.Password)
	}
	return u.String()
}

func tlsConfig(conf *Config, fs afero.Fs) (*tls.Config, error) {
	if len(conf.DB.ServerName) == 0 {
		return nil, errors.New("tls: server_name is required")
	}
	if len(conf.DB.ServerCert) == 0 {
		return nil, errors.New("tls: server_cert is required")
	}

	pem, err := readPEM(conf, fs, conf.DB.ServerCert)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}

	rootCertPool := x509.NewCertPool()
	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return nil, errors.New("tls: failed to append pem")
	}

	tc := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    rootCertPool,
		ServerName: conf.DB.ServerName,
	}

	if len(conf.DB.ClientCert) > 0 {
		if len(conf.DB.ClientKey) == 0 {
			return nil, errors.New("tls: client_key is required")
		}
		certPEM, err := readPEM(conf, fs, conf.DB.ClientCert)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		keyPEM, err := readPEM(conf, fs, conf.DB.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// readPEM returns inline PEM contents or reads them from a file relative to
// the config path.
func readPEM(conf *Config, fs afero.Fs, v string) ([]byte, error) {
	if strings.Contains(v, pemSig) {
		return []byte(strings.ReplaceAll(v, `\n`, "\n")), nil
	}
	return afero.ReadFile(fs, conf.AbsolutePath(v))
}
