package exempted

import "rawhtml/rawapi"

func render() string {
	return rawapi.Adopt("<b>hi</b>")
}
