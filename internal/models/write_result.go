package models

// WriteResult - итог операции записи, единый для всех DAO-методов.
// Ошибка операции возвращается отдельно; нулевой WriteResult без ошибки
// означает «запись выполнена, но ни один документ не затронут».
type WriteResult struct {
	Matched  int64
	Modified int64
	Upserted int64
	Deleted  int64
}

// Applied сообщает, затронула ли операция хотя бы один документ.
// Для update/delete комментариев false означает «не найден или чужой».
func (r WriteResult) Applied() bool {
	return r.Matched > 0 || r.Upserted > 0 || r.Deleted > 0
}
