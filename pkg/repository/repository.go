// Package repository provides a small generic gorm-backed reader used by the
// read-heavy services. Write paths need conditional inserts and atomic
// increments, so they talk to gorm directly inside their own transactions.
package repository

import (
	"context"

	"github.com/agentwood/voiceledger/pkg/db/option"
)

type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
}
