package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"

	"backup-rotator/internal/config"
	appErrors "backup-rotator/internal/errors"
	"backup-rotator/internal/logging"
)

// FTPSProvider uploads to an FTP server over explicit TLS. One control
// connection is opened on first use and kept until Close.
type FTPSProvider struct {
	cfg     config.FTPSConfig
	timeout time.Duration
	logger  *logging.Logger
	conn    *ftp.ServerConn

	// listings caches directory listings: dir -> entry name -> type
	listings map[string]map[string]ftp.EntryType
}

// NewFTPSProvider creates an FTPS provider; it does not connect yet
func NewFTPSProvider(cfg config.FTPSConfig, timeout time.Duration, logger *logging.Logger) *FTPSProvider {
	return &FTPSProvider{
		cfg:      cfg,
		timeout:  timeout,
		logger:   logger,
		listings: make(map[string]map[string]ftp.EntryType),
	}
}

func (fp *FTPSProvider) connect(ctx context.Context) (*ftp.ServerConn, error) {
	if fp.conn != nil {
		return fp.conn, nil
	}

	addr := net.JoinHostPort(fp.cfg.Host, strconv.Itoa(fp.cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         fp.cfg.Host,
		InsecureSkipVerify: fp.cfg.InsecureSkipVerify,
	}

	fp.logger.WithField("addr", addr).Debug("Connecting to FTPS server")

	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(fp.timeout),
		ftp.DialWithExplicitTLS(tlsConfig),
	)
	if err != nil {
		return nil, appErrors.WrapError(err, fmt.Sprintf("failed to connect to FTPS server %s", addr))
	}

	if err := conn.Login(fp.cfg.Username, fp.cfg.Password); err != nil {
		conn.Quit()
		return nil, appErrors.NewNetworkError("FTPS login failed", err)
	}

	fp.conn = conn
	return conn, nil
}

// reset drops a connection after a failed command so the next call redials
func (fp *FTPSProvider) reset() {
	if fp.conn != nil {
		fp.conn.Quit()
		fp.conn = nil
	}
	fp.listings = make(map[string]map[string]ftp.EntryType)
}

// ensureDir creates every missing directory of key, one level at a time
func (fp *FTPSProvider) ensureDir(conn *ftp.ServerConn, key string) error {
	for _, dir := range dirChain(key) {
		found, err := fp.hasEntry(conn, dir, ftp.EntryTypeFolder)
		if err != nil {
			return err
		}
		if found {
			continue
		}

		if err := conn.MakeDir(dir); err != nil {
			return appErrors.NewNetworkError(fmt.Sprintf("failed to create remote directory %s", dir), err)
		}
		fp.remember(dir, ftp.EntryTypeFolder)
		fp.logger.WithField("dir", dir).Debug("Created remote directory")
	}
	return nil
}

// hasEntry looks for p in the listing of its parent directory
func (fp *FTPSProvider) hasEntry(conn *ftp.ServerConn, p string, entryType ftp.EntryType) (bool, error) {
	parent, name := splitKey(p)
	if parent == "" {
		parent = "."
	}

	listing, ok := fp.listings[parent]
	if !ok {
		entries, err := conn.List(parent)
		if err != nil {
			return false, appErrors.NewNetworkError(fmt.Sprintf("failed to list remote directory %s", parent), err)
		}
		listing = make(map[string]ftp.EntryType, len(entries))
		for _, e := range entries {
			listing[path.Base(e.Name)] = e.Type
		}
		fp.listings[parent] = listing
	}

	t, found := listing[name]
	return found && t == entryType, nil
}

// remember records an entry this provider created
func (fp *FTPSProvider) remember(p string, entryType ftp.EntryType) {
	parent, name := splitKey(p)
	if parent == "" {
		parent = "."
	}
	if listing, ok := fp.listings[parent]; ok {
		listing[name] = entryType
	}
	if entryType == ftp.EntryTypeFolder {
		fp.listings[p] = make(map[string]ftp.EntryType)
	}
}

// Upload stores localPath at key.part, then renames it to key
func (fp *FTPSProvider) Upload(ctx context.Context, localPath, key string) error {
	conn, err := fp.connect(ctx)
	if err != nil {
		return err
	}

	if err := fp.ensureDir(conn, key); err != nil {
		fp.reset()
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return appErrors.NewStorageError("failed to open archive", err)
	}
	defer f.Close()

	part := key + PartSuffix
	if err := conn.Stor(part, &contextReader{ctx: ctx, r: f}); err != nil {
		fp.reset()
		if ctx.Err() != nil {
			return appErrors.WrapError(ctx.Err(), "upload interrupted")
		}
		return appErrors.NewNetworkError("failed to store remote file", err)
	}

	// Some servers refuse to rename onto an existing file
	conn.Delete(key)
	if err := conn.Rename(part, key); err != nil {
		fp.reset()
		return appErrors.NewNetworkError("failed to finalize remote file", err)
	}
	fp.remember(key, ftp.EntryTypeFile)
	return nil
}

// Exists reports whether a file is stored at key
func (fp *FTPSProvider) Exists(ctx context.Context, key string) (bool, error) {
	conn, err := fp.connect(ctx)
	if err != nil {
		return false, err
	}

	for _, dir := range dirChain(key) {
		found, err := fp.hasEntry(conn, dir, ftp.EntryTypeFolder)
		if err != nil {
			fp.reset()
			return false, err
		}
		if !found {
			return false, nil
		}
	}

	found, err := fp.hasEntry(conn, key, ftp.EntryTypeFile)
	if err != nil {
		fp.reset()
		return false, err
	}
	return found, nil
}

// Close ends the FTP session
func (fp *FTPSProvider) Close() error {
	if fp.conn == nil {
		return nil
	}
	err := fp.conn.Quit()
	fp.conn = nil
	return err
}
