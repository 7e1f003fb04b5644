package models

// User - пользователь (коллекция users). Email - первичный ключ поиска.
//
// Preferences при обновлении заменяется целиком, слияния нет.
type User struct {
	Name           string
	Email          string
	HashedPassword string
	Preferences    map[string]any
}

// Session - активная сессия пользователя (коллекция sessions).
// На одного UserID хранится не более одного документа.
type Session struct {
	UserID string
	JWT    string
}
