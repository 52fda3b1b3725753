package engine

import (
	"strconv"

	"questguild/internal/apperr"
)

func idMeta(key string, id int64) map[string]string {
	return map[string]string{key: strconv.FormatInt(id, 10)}
}

func taskNotFound(id int64) error {
	return apperr.WithMetadata(apperr.CodeTaskNotFound, "task "+strconv.FormatInt(id, 10)+" not found", idMeta("task_id", id))
}

func taskNotOwned(id int64) error {
	return apperr.WithMetadata(apperr.CodeTaskNotOwned, "task "+strconv.FormatInt(id, 10)+" belongs to another character", idMeta("task_id", id))
}

func invalidTransition(id int64, from, to TaskStatus) error {
	return apperr.WithMetadata(apperr.CodeTaskInvalidTransition,
		"task "+strconv.FormatInt(id, 10)+" cannot go from "+string(from)+" to "+string(to),
		map[string]string{"task_id": strconv.FormatInt(id, 10), "from": string(from), "to": string(to)})
}

func taskTerminal(id int64, status TaskStatus) error {
	return apperr.WithMetadata(apperr.CodeTaskTerminal,
		"task "+strconv.FormatInt(id, 10)+" is "+string(status),
		map[string]string{"task_id": strconv.FormatInt(id, 10), "status": string(status)})
}

func quotaExhausted(class QuotaClass, used int) error {
	return apperr.WithMetadata(apperr.CodeTaskQuotaExhausted,
		"quota exhausted: "+strconv.Itoa(class.Limit())+" per "+string(class.Period()),
		map[string]string{
			"class":  string(class),
			"limit":  strconv.Itoa(class.Limit()),
			"used":   strconv.Itoa(used),
			"period": string(class.Period()),
		})
}

func insufficientCoins(price, balance int64) error {
	return apperr.WithMetadata(apperr.CodeInsufficientCoins,
		"not enough coins: need "+strconv.FormatInt(price, 10),
		map[string]string{
			"price":   strconv.FormatInt(price, 10),
			"balance": strconv.FormatInt(balance, 10),
		})
}
