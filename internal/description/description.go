// Package description renders the UPnP device description served at
// /description.xml.
package description

import (
	"bytes"
	"net"
	"text/template"

	"github.com/dokzlo13/huebridge/internal/netinfo"
)

// ContentType of the rendered document.
const ContentType = "text/xml"

var tmpl = template.Must(template.New("description").Parse(`<?xml version="1.0" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion><major>1</major><minor>0</minor></specVersion>
<URLBase>http://{{.IP}}:{{.Port}}/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>{{.Name}} ({{.IP}})</friendlyName>
<manufacturer>Royal Philips Electronics</manufacturer>
<manufacturerURL>http://www.philips.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2012</modelName>
<modelNumber>929000226503</modelNumber>
<modelURL>http://www.meethue.com</modelURL>
<serialNumber>{{.Serial}}</serialNumber>
<UDN>uuid:{{.UUID}}</UDN>
<presentationURL>index.html</presentationURL>
</device>
</root>
`))

// FriendlyName prefixes the IP in the friendlyName element.
const FriendlyName = "huebridge"

// Render returns the description document for a bridge reachable at ip:port.
func Render(ip net.IP, port int, id netinfo.Identity) []byte {
	var buf bytes.Buffer
	// Every field is a plain string or int, execution cannot fail.
	_ = tmpl.Execute(&buf, struct {
		IP     string
		Port   int
		Name   string
		Serial string
		UUID   string
	}{
		IP:     ip.String(),
		Port:   port,
		Name:   FriendlyName,
		Serial: id.MACHex(),
		UUID:   id.UUID().String(),
	})
	return buf.Bytes()
}
