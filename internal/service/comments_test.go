package service

// Тесты сервисного слоя (internal/service/comments.go).
//
//  Проверяем:
//  - валидацию входов AddComment (пустой ID не доходит до хранилища);
//  - маппинг ошибок storage -> service (InvalidArgument / NotFound / Conflict / Internal);
//  - аргументы, с которыми вызывается storage (email автора, время из s.now);
//  - happy-path каждого метода.
//
// Подготовка окружения:
//   # 1) Сгенерировать моки:
//   mockgen -source=./internal/storage/storage.go -destination=./mocks/storage.go -package=mocks
//   mockgen -source=./internal/cache/cache.go -destination=./mocks/cache.go -package=mocks
//
//   # 2) Запустить тесты:
//   go test ./internal/service -v -race -count=1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/mflix-service/internal/config"
	"github.com/pribylovaa/mflix-service/internal/models"
	"github.com/pribylovaa/mflix-service/internal/storage"
	"github.com/pribylovaa/mflix-service/mocks"
	"github.com/stretchr/testify/require"
)

const testCommentID = "5a9427648b0beebeb69579e7"

// newServiceWithMocks - поднимает сервис с моком хранилища и фиксированными часами.
func newServiceWithMocks(t *testing.T) (*Service, *mocks.MockStorage) {
	t.Helper()
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStorage(ctrl)

	s := New(ms, config.Config{Timeouts: config.TimeoutConfig{Service: time.Second}})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	return s, ms
}

func TestService_CommentByID(t *testing.T) {
	s, ms := newServiceWithMocks(t)
	want := &models.Comment{ID: testCommentID, Email: "a@x.com", Text: "hi"}

	ms.EXPECT().CommentByID(gomock.Any(), testCommentID).Return(want, nil)

	got, err := s.CommentByID(context.Background(), testCommentID)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestService_CommentByID_StorageErrors(t *testing.T) {
	cases := []struct {
		name    string
		storErr error
		want    error
	}{
		{"not found", storage.ErrNotFound, ErrNotFound},
		{"invalid id", storage.ErrInvalidID, ErrInvalidArgument},
		{"internal", errors.New("connection reset"), ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, ms := newServiceWithMocks(t)
			ms.EXPECT().CommentByID(gomock.Any(), gomock.Any()).Return(nil, tc.storErr)

			got, err := s.CommentByID(context.Background(), "whatever")
			require.Nil(t, got)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

// Исходная ошибка драйвера не теряется при оборачивании в ErrInternal.
func TestService_CommentByID_InternalKeepsCause(t *testing.T) {
	s, ms := newServiceWithMocks(t)
	cause := errors.New("server selection timeout")
	ms.EXPECT().CommentByID(gomock.Any(), gomock.Any()).Return(nil, cause)

	_, err := s.CommentByID(context.Background(), testCommentID)
	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, cause)
}

// Пустой ID отклоняется до обращения к хранилищу (вызовов мока нет).
func TestService_AddComment_Validation(t *testing.T) {
	s, _ := newServiceWithMocks(t)

	for _, id := range []string{"", "   "} {
		got, err := s.AddComment(context.Background(), models.Comment{ID: id, Email: "a@x.com"})
		require.Nil(t, got)
		require.ErrorIs(t, err, ErrValidation)
	}
}

func TestService_AddComment(t *testing.T) {
	s, ms := newServiceWithMocks(t)
	c := models.Comment{ID: testCommentID, Name: "A", Email: "a@x.com", Text: "hi"}

	ms.EXPECT().InsertComment(gomock.Any(), c).Return(nil)

	got, err := s.AddComment(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, c, *got)
}

// Дата нормализуется так же, как её сохранит БД: UTC, миллисекунды.
func TestService_AddComment_NormalizesDate(t *testing.T) {
	s, ms := newServiceWithMocks(t)
	in := models.Comment{
		ID:    testCommentID,
		Email: "a@x.com",
		Date:  time.Date(2024, 5, 1, 15, 4, 5, 123456789, time.FixedZone("MSK", 3*3600)),
	}
	want := in
	want.Date = time.Date(2024, 5, 1, 12, 4, 5, 123000000, time.UTC)

	ms.EXPECT().InsertComment(gomock.Any(), want).Return(nil)

	got, err := s.AddComment(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, want, *got)
}

func TestService_AddComment_StorageErrors(t *testing.T) {
	s, ms := newServiceWithMocks(t)
	c := models.Comment{ID: testCommentID, Email: "a@x.com"}

	ms.EXPECT().InsertComment(gomock.Any(), c).Return(storage.ErrAlreadyExists)
	_, err := s.AddComment(context.Background(), c)
	require.ErrorIs(t, err, ErrConflict)
	require.Contains(t, err.Error(), testCommentID)

	ms.EXPECT().InsertComment(gomock.Any(), c).Return(storage.ErrInvalidID)
	_, err = s.AddComment(context.Background(), c)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestService_UpdateComment(t *testing.T) {
	s, ms := newServiceWithMocks(t)

	ms.EXPECT().
		UpdateComment(gomock.Any(), testCommentID, "a@x.com", "hello", s.now()).
		Return(models.WriteResult{Matched: 1, Modified: 1}, nil)

	res, err := s.UpdateComment(context.Background(), testCommentID, "hello", "a@x.com")
	require.NoError(t, err)
	require.True(t, res.Applied())
}

// Чужой или отсутствующий комментарий - не ошибка, а нулевой WriteResult.
func TestService_UpdateComment_NotOwned(t *testing.T) {
	s, ms := newServiceWithMocks(t)

	ms.EXPECT().
		UpdateComment(gomock.Any(), testCommentID, "b@y.com", "nope", gomock.Any()).
		Return(models.WriteResult{}, nil)

	res, err := s.UpdateComment(context.Background(), testCommentID, "nope", "b@y.com")
	require.NoError(t, err)
	require.False(t, res.Applied())
}

func TestService_UpdateComment_StorageError(t *testing.T) {
	s, ms := newServiceWithMocks(t)

	ms.EXPECT().
		UpdateComment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.WriteResult{}, errors.New("write concern error"))

	_, err := s.UpdateComment(context.Background(), testCommentID, "x", "a@x.com")
	require.ErrorIs(t, err, ErrInternal)
}

func TestService_DeleteComment(t *testing.T) {
	s, ms := newServiceWithMocks(t)

	ms.EXPECT().DeleteComment(gomock.Any(), testCommentID, "a@x.com").Return(models.WriteResult{Deleted: 1}, nil)
	res, err := s.DeleteComment(context.Background(), testCommentID, "a@x.com")
	require.NoError(t, err)
	require.True(t, res.Applied())

	ms.EXPECT().DeleteComment(gomock.Any(), "c1", "a@x.com").Return(models.WriteResult{}, storage.ErrInvalidID)
	_, err = s.DeleteComment(context.Background(), "c1", "a@x.com")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestService_MostActiveCommenters(t *testing.T) {
	s, ms := newServiceWithMocks(t)
	want := []models.Critic{{Email: "a@x.com", Count: 3}, {Email: "b@x.com", Count: 1}}

	ms.EXPECT().MostActiveCommenters(gomock.Any(), int64(20)).Return(want, nil)

	got, err := s.MostActiveCommenters(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestService_MostActiveCommenters_Empty(t *testing.T) {
	s, ms := newServiceWithMocks(t)

	ms.EXPECT().MostActiveCommenters(gomock.Any(), gomock.Any()).Return(nil, nil)

	got, err := s.MostActiveCommenters(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

// Сервисный таймаут навешивается только если у вызывающего нет своего дедлайна.
func TestService_WithTimeout(t *testing.T) {
	s, ms := newServiceWithMocks(t)

	ms.EXPECT().CommentByID(gomock.Any(), testCommentID).DoAndReturn(
		func(ctx context.Context, _ string) (*models.Comment, error) {
			dl, ok := ctx.Deadline()
			require.True(t, ok)
			require.WithinDuration(t, time.Now().Add(time.Second), dl, 500*time.Millisecond)
			return &models.Comment{ID: testCommentID}, nil
		})
	_, err := s.CommentByID(context.Background(), testCommentID)
	require.NoError(t, err)

	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := parent.Deadline()

	ms.EXPECT().CommentByID(gomock.Any(), testCommentID).DoAndReturn(
		func(ctx context.Context, _ string) (*models.Comment, error) {
			dl, ok := ctx.Deadline()
			require.True(t, ok)
			require.Equal(t, want, dl)
			return &models.Comment{ID: testCommentID}, nil
		})
	_, err = s.CommentByID(parent, testCommentID)
	require.NoError(t, err)
}
