// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"context"
	"io"
	"iter"
	"net"
	"os"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("sftp", newSFTPAdapter)
}

// sftpAdapter serves files over an SSH session. The session opens at
// construction time and is held for the adapter's lifetime; Close tears it
// down. Without a known_hosts_file option host keys are not verified, which
// is only acceptable for trusted research networks.
type sftpAdapter struct {
	sshClient *ssh.Client
	client    *sftp.Client
	base      string
	closed    atomic.Bool
}

func newSFTPAdapter(ctx context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("sftp", opts,
		"host", "user", "password", "key_file", "known_hosts_file", "base_path"); err != nil {
		return nil, err
	}
	if err := requireOptions("sftp", opts, "host", "user"); err != nil {
		return nil, err
	}

	var auth []ssh.AuthMethod
	if pw := opts["password"]; pw != "" {
		auth = append(auth, ssh.Password(pw))
	}
	if keyFile := opts["key_file"]; keyFile != "" {
		keyData, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeConfigValidateInvalidValue,
				"reading sftp key_file", scenioerr.FieldPath(keyFile))
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeConfigValidateInvalidValue,
				"parsing sftp private key", scenioerr.FieldPath(keyFile))
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, optionError("sftp", "either password or key_file is required")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in via known_hosts_file
	if khFile := opts["known_hosts_file"]; khFile != "" {
		cb, err := knownhosts.New(khFile)
		if err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeConfigValidateInvalidValue,
				"loading known_hosts_file", scenioerr.FieldPath(khFile))
		}
		hostKeyCallback = cb
	}

	sshCfg := &ssh.ClientConfig{
		User:            opts["user"],
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	}

	netConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", opts["host"])
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"dialing sftp host", scenioerr.FieldBackend("sftp"))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, opts["host"], sshCfg)
	if err != nil {
		_ = netConn.Close()
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"establishing ssh session", scenioerr.FieldBackend("sftp"))
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"starting sftp subsystem", scenioerr.FieldBackend("sftp"))
	}

	return &sftpAdapter{
		sshClient: sshClient,
		client:    client,
		base:      strings.TrimSuffix(opts["base_path"], "/"),
	}, nil
}

func (a *sftpAdapter) Name() string { return "sftp" }

func (a *sftpAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeStorageAdapterClosed,
			"storage adapter is closed", scenioerr.FieldBackend("sftp"))
	}
	return nil
}

func (a *sftpAdapter) full(p string) string {
	if a.base == "" {
		return p
	}
	return path.Join(a.base, p)
}

func (a *sftpAdapter) mapError(err error, p, op string) error {
	if os.IsNotExist(err) {
		return scenioerr.New(scenioerr.CodeStorageObjectNotFound,
			"object not found", scenioerr.FieldBackend("sftp"), scenioerr.FieldPath(p))
	}
	return scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure, op,
		scenioerr.FieldBackend("sftp"), scenioerr.FieldPath(p))
}

func (a *sftpAdapter) Read(ctx context.Context, p string) ([]byte, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	f, err := a.client.Open(a.full(p))
	if err != nil {
		return nil, a.mapError(err, p, "opening file")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, a.mapError(err, p, "reading file")
	}
	return data, nil
}

func (a *sftpAdapter) Write(ctx context.Context, p string, data []byte) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	full := a.full(p)
	if dir := path.Dir(full); dir != "." && dir != "/" {
		if err := a.client.MkdirAll(dir); err != nil {
			return a.mapError(err, p, "creating parent directories")
		}
	}

	f, err := a.client.Create(full)
	if err != nil {
		return a.mapError(err, p, "creating file")
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return a.mapError(err, p, "writing file")
	}
	if err := f.Close(); err != nil {
		return a.mapError(err, p, "finalizing file write")
	}
	return nil
}

func (a *sftpAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	prefix = strings.TrimPrefix(prefix, "/")

	root := a.base
	if root == "" {
		root = "."
	}

	var paths []string
	if err := a.walk(root, "", prefix, &paths); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// walk recursively collects files under dir whose adapter-relative path
// starts with prefix.
func (a *sftpAdapter) walk(dir, rel, prefix string, out *[]string) error {
	entries, err := a.client.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return a.mapError(err, rel, "listing directory")
	}

	for _, entry := range entries {
		entryRel := entry.Name()
		if rel != "" {
			entryRel = rel + "/" + entry.Name()
		}
		if entry.IsDir() {
			if err := a.walk(path.Join(dir, entry.Name()), entryRel, prefix, out); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(entryRel, prefix) {
			*out = append(*out, entryRel)
		}
	}
	return nil
}

func (a *sftpAdapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := a.guard(); err != nil {
		return false, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	_, err = a.client.Stat(a.full(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, a.mapError(err, p, "checking file")
	}
	return true, nil
}

func (a *sftpAdapter) Delete(ctx context.Context, p string) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	if err := a.client.Remove(a.full(p)); err != nil {
		return a.mapError(err, p, "deleting file")
	}
	return nil
}

func (a *sftpAdapter) StreamRead(ctx context.Context, p string, chunkSize int) (iter.Seq2[[]byte, error], error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	f, err := a.client.Open(a.full(p))
	if err != nil {
		return nil, a.mapError(err, p, "opening file")
	}
	return chunked(f, chunkSize), nil
}

func (a *sftpAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	clientErr := a.client.Close()
	sshErr := a.sshClient.Close()
	if clientErr != nil {
		return clientErr
	}
	return sshErr
}
