// Package models содержит доменные сущности mflix-service.
package models

import "time"

// Comment - комментарий пользователя к фильму (коллекция comments).
// Важно:
//   - ID - ObjectID MongoDB в hex-представлении; для вставки обязателен,
//     хранилище его не генерирует;
//   - Email - e-mail автора; по нему же авторизуются update/delete;
//   - MovieID - необязательная ссылка на фильм (hex ObjectID или пусто);
//   - Date - момент создания/последнего изменения; хранится в UTC с точностью
//     до миллисекунд, более мелкая часть отбрасывается при записи.
type Comment struct {
	ID      string
	Name    string
	Email   string
	MovieID string
	Text    string
	Date    time.Time
}

// Critic - агрегат «автор -> количество комментариев».
// Не хранится, строится только отчётом MostActiveCommenters.
type Critic struct {
	Email string
	Count int64
}
