package util

import (
	"fmt"
	"strings"
)

func DBDebugPreparedStatement(stmnt string, params []interface{}) string {
	return fmt.Sprintf(strings.Replace(stmnt, "?", "'%v'", len(params)), params...)
}

// GetValuePlaceHolder returns "?,?,?" for the given size.
func GetValuePlaceHolder(size int) string {
	if size <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", size), ",")
}

func GetInterfaceList(list []string) []interface{} {
	interfaceList := make([]interface{}, 0, len(list))
	for _, v := range list {
		interfaceList = append(interfaceList, v)
	}
	return interfaceList
}
