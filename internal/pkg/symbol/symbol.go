package symbol

import (
	"strings"
)

// indexRoots 将指数周/月度期权的包装代码映射回母指数代码。
var indexRoots = map[string]string{
	"SPXW": "SPX",
	"SPXP": "SPX",
	"NDXW": "NDX",
	"NDXP": "NDX",
}

// Display 返回去空白、大写后的展示代码，原始包装代码保留。
func Display(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Canonical 返回行情查询使用的代码（SPXW/SPXP->SPX, NDXW/NDXP->NDX）。
func Canonical(s string) string {
	sym := Display(s)
	if root, ok := indexRoots[sym]; ok {
		return root
	}
	return sym
}

func IsValid(s string) bool {
	sym := Display(s)
	if sym == "" || len(sym) > 20 {
		return false
	}
	for _, r := range sym {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
