package notify

import "html/template"

var successTemplate = template.Must(template.New("success").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>Your video is ready</h2>
<p>Hi there,</p>
<p>Great news: the clip for order <strong>{{.OrderID}}</strong> has finished processing.</p>
{{if .VideoURL}}<p><a href="{{.VideoURL}}" style="background:#c62828;color:#fff;padding:10px 16px;text-decoration:none;border-radius:4px">Watch and download</a></p>{{end}}
{{if .ThumbnailURL}}<p><img src="{{.ThumbnailURL}}" alt="Video preview" width="320"></p>{{end}}
<p>The download link expires, so save the video somewhere safe.</p>
{{if .StatusURL}}<p>You can always check your order at <a href="{{.StatusURL}}">{{.StatusURL}}</a>.</p>{{end}}
</body></html>`))

var failureTemplate = template.Must(template.New("failure").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>We hit a problem with your video</h2>
<p>Hi there,</p>
<p>Unfortunately we could not finish the clip for order <strong>{{.OrderID}}</strong>.</p>
{{if .ErrorMessage}}<p>Reason: {{.ErrorMessage}}</p>{{end}}
<p>Our team has been notified and your order can be retried. Reply to this email if you need help.</p>
{{if .StatusURL}}<p>Order status: <a href="{{.StatusURL}}">{{.StatusURL}}</a></p>{{end}}
</body></html>`))
