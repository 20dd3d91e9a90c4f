package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rajivgeraev/reswap-api/internal/imaging"
)

// StoreImage сжимает изображение и кладет его в хранилище под случайным ключом
func StoreImage(ctx context.Context, s Storage, prefix string, r io.Reader) (Object, *imaging.Result, error) {
	res, err := imaging.Process(r)
	if err != nil {
		return Object{}, nil, err
	}

	obj, err := s.Upload(ctx, NewKey(prefix), bytes.NewReader(res.Data))
	if err != nil {
		return Object{}, nil, fmt.Errorf("ошибка сохранения изображения: %w", err)
	}
	return obj, res, nil
}
