// Package keyrepo persists key-material documents as individual XML objects
// in an object store.
//
// Each document lives under <prefix><name>.xml. Reads list the prefix and
// fetch every .xml object; writes upload one object. All store calls go
// through a retry.Executor, and every call goes back to the store: nothing
// is cached in process.
package keyrepo

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keyrepo/internal/common"
	"github.com/dmitrijs2005/keyrepo/internal/logging"
	"github.com/dmitrijs2005/keyrepo/internal/objectstore"
	"github.com/dmitrijs2005/keyrepo/internal/retry"
)

// Options scopes a Repository.
//
// Fields:
//   - Namespace: bucket (or logical bucket) the store is bound to. Required.
//   - Prefix: optional key prefix used both for new keys and for listings,
//     e.g. "keys/".
type Options struct {
	Namespace string
	Prefix    string
}

// Repository stores and loads documents. It holds no mutable state and is
// safe for concurrent use. Concurrent writes to the same name are last
// writer wins.
type Repository struct {
	store  objectstore.Store
	exec   *retry.Executor
	prefix string
	logger logging.Logger
}

// NewRepository wires a repository. A nil executor gets the default retry
// policy and a nil logger discards output.
func NewRepository(store objectstore.Store, exec *retry.Executor, opts Options, logger logging.Logger) (*Repository, error) {
	if opts.Namespace == "" {
		return nil, common.ErrorMissingNamespace
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if exec == nil {
		exec = retry.New(retry.DefaultConfig(), logger)
	}

	return &Repository{
		store:  store,
		exec:   exec,
		prefix: opts.Prefix,
		logger: logger.With("namespace", opts.Namespace),
	}, nil
}

// GetAllDocuments lists the prefix and returns every parsed .xml document in
// listing order. Objects with other suffixes are skipped.
//
// The listing and each download are retried independently. Any failure,
// including a malformed document, fails the whole call; no partial result is
// returned. Parse errors wrap common.ErrorMalformedDocument.
func (r *Repository) GetAllDocuments(ctx context.Context) ([]*Document, error) {
	objects, err := retry.Do(ctx, r.exec, func(ctx context.Context) ([]objectstore.ObjectInfo, error) {
		return r.store.List(ctx, r.prefix)
	})
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(objects))
	for _, o := range objects {
		if !IsDocumentKey(o.Key) {
			continue
		}

		key := o.Key
		r.logger.Debug(ctx, "reading document", "key", key)

		data, err := retry.Do(ctx, r.exec, func(ctx context.Context) ([]byte, error) {
			return r.store.Download(ctx, key)
		})
		if err != nil {
			return nil, err
		}

		doc, err := ParseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", key, err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// StoreDocument uploads doc under a key derived from friendlyName. Names that
// cannot be used in a key are replaced by a generated UUID; the original name
// is then only recorded in the log.
func (r *Repository) StoreDocument(ctx context.Context, doc *Document, friendlyName string) error {
	if doc.IsEmpty() {
		return common.ErrorNilDocument
	}

	name, ok := SafeName(friendlyName)
	if !ok {
		r.logger.Info(ctx, "unsuitable name, using generated name",
			"friendly_name", friendlyName, "new_name", name)
	}

	key := StorageKey(r.prefix, name)

	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("serialize document: %w", err)
	}

	r.logger.Info(ctx, "writing document", "key", key)

	return r.exec.Run(ctx, func(ctx context.Context) error {
		return r.store.Upload(ctx, key, common.DocumentContentType, data)
	})
}
