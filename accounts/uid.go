package accounts

import (
	"os"
	"strconv"
)

func currentUIDString() string {
	return strconv.Itoa(os.Geteuid())
}
