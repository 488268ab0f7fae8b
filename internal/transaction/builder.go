// internal/transaction/builder.go
package transaction

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ItemFactory строит один элемент батча. Реализация не должна делить состояние между элементами.
type ItemFactory interface {
	BuildItem(ctx context.Context, index int) (*Item, error)
}

// ItemFactoryFunc позволяет использовать функцию как ItemFactory.
type ItemFactoryFunc func(ctx context.Context, index int) (*Item, error)

func (f ItemFactoryFunc) BuildItem(ctx context.Context, index int) (*Item, error) {
	return f(ctx, index)
}

// BuildBatch собирает quantity независимых элементов не более чем в concurrency потоков.
// Ошибка одного элемента записывается в его BuildResult и не останавливает остальные.
// Возвращаемая ошибка только для неверных аргументов.
func BuildBatch(ctx context.Context, quantity int, factory ItemFactory, concurrency int) ([]BuildResult, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}
	if factory == nil {
		return nil, errors.New("item factory is nil")
	}
	if concurrency <= 0 {
		concurrency = DefaultBuildConcurrency
	}

	results := make([]BuildResult, quantity)
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i := 0; i < quantity; i++ {
		g.Go(func() error {
			results[i] = buildOne(ctx, factory, i)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func buildOne(ctx context.Context, factory ItemFactory, index int) BuildResult {
	if err := ctx.Err(); err != nil {
		return BuildResult{Index: index, Err: &BuildError{Index: index, Err: err}}
	}

	item, err := factory.BuildItem(ctx, index)
	switch {
	case err != nil:
		return BuildResult{Index: index, Err: &BuildError{Index: index, Err: err}}
	case item == nil || len(item.Instructions) == 0:
		return BuildResult{Index: index, Err: &BuildError{Index: index, Err: errors.New("no instructions")}}
	}
	item.Index = index
	return BuildResult{Index: index, Item: item}
}
