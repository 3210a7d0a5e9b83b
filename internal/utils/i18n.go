package utils

// Server-side message table for error titles. Form copy lives in the frontend.
var translations = map[string]map[string]string{
	"en": {
		"health.ok":          "ok",
		"error.invalid":      "The request could not be processed",
		"error.unauthorized": "Please sign in again",
		"error.forbidden":    "You do not have access to this resource",
		"error.not_found":    "Not found",
		"error.conflict":     "Already exists",
		"error.internal":     "Something went wrong",
	},
	"zh": {
		"health.ok":          "好的",
		"error.invalid":      "请求无法处理",
		"error.unauthorized": "请重新登录",
		"error.forbidden":    "无权访问该资源",
		"error.not_found":    "未找到",
		"error.conflict":     "已存在",
		"error.internal":     "服务器出错",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if v, ok := translations[locale][key]; ok {
		return v
	}
	if v, ok := translations["en"][key]; ok {
		return v
	}
	return key
}
