package codec

// dictionary maps common tokens (status names, HTTP verbs, content types,
// short URL prefixes) to sub-5-byte sigils, checked before falling back to
// percent-encoding or base64 in the smart string encoder. Process-wide
// and never mutated after init.
var dictionary = map[string]string{
	"GET": "d:01", "POST": "d:02", "PUT": "d:03", "PATCH": "d:04", "DELETE": "d:05",
	"HEAD": "d:06", "OPTIONS": "d:07",
	"pending": "d:10", "active": "d:11", "completed": "d:12", "failed": "d:13",
	"cancelled": "d:14", "paid": "d:15", "unpaid": "d:16", "draft": "d:17",
	"published": "d:18", "archived": "d:19", "deleted": "d:1a",
	"application/json": "d:20", "application/xml": "d:21", "text/plain": "d:22",
	"text/html": "d:23", "application/octet-stream": "d:24",
	"https://": "d:30", "http://": "d:31", "www.": "d:32",
	"true": "d:40", "false": "d:41", "null": "d:42",
}

var reverseDictionary = func() map[string]string {
	m := make(map[string]string, len(dictionary))
	for k, v := range dictionary {
		m[v] = k
	}
	return m
}()
