package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/types"
)

type pageData struct {
	Contract     *types.Contract
	Settings     *types.BusinessSettings
	SignEndpoint string
	RenderedAt   time.Time

	// Fields left blank by the performer become mandatory for the client.
	NeedPhone        bool
	NeedAddress      bool
	NeedVenueAddress bool
}

func (r *renderer) SigningPage(contract *types.Contract, settings *types.BusinessSettings, signEndpoint string, now time.Time) ([]byte, error) {
	if contract == nil || settings == nil {
		return nil, fmt.Errorf("render: contract and settings required")
	}
	if contract.IsSigned() {
		return r.SignedPage(contract, settings, now)
	}

	data := pageData{
		Contract:         contract,
		Settings:         settings,
		SignEndpoint:     signEndpoint,
		RenderedAt:       now,
		NeedPhone:        contract.ClientPhone == "",
		NeedAddress:      contract.ClientAddress == "",
		NeedVenueAddress: contract.VenueAddress == "",
	}

	var buf bytes.Buffer
	if err := signingPageTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render: signing page: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *renderer) SignedPage(contract *types.Contract, settings *types.BusinessSettings, now time.Time) ([]byte, error) {
	if contract == nil || settings == nil {
		return nil, fmt.Errorf("render: contract and settings required")
	}

	data := pageData{
		Contract:   contract,
		Settings:   settings,
		RenderedAt: now,
	}

	var buf bytes.Buffer
	if err := signedPageTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render: signed page: %w", err)
	}
	return buf.Bytes(), nil
}

// Both pages are fully self-contained: inline styles, inline script, no
// external assets. The published object must keep working when the app
// backend is down, except for the single sign POST itself.

var signingPageTmpl = template.Must(template.New("signing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Performance Contract {{.Contract.ContractNumber}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;margin:0;background:#f4f5f7;color:#1f2430}
.wrap{max-width:640px;margin:2rem auto;background:#fff;border-radius:8px;padding:2rem;box-shadow:0 1px 4px rgba(0,0,0,.12)}
h1{font-size:1.4rem;margin-top:0}
dl{display:grid;grid-template-columns:10rem 1fr;gap:.4rem 1rem}
dt{font-weight:bold;color:#555}
dd{margin:0}
label{display:block;margin-top:1rem;font-weight:bold}
input{width:100%;box-sizing:border-box;padding:.5rem;margin-top:.25rem;border:1px solid #c4c9d4;border-radius:4px}
button{margin-top:1.5rem;width:100%;padding:.75rem;background:#2457d6;color:#fff;border:0;border-radius:4px;font-size:1rem;cursor:pointer}
button:disabled{background:#9fb3e8}
.error{color:#b3261e;margin-top:1rem;display:none}
.done{display:none;text-align:center;padding:2rem 0}
small.req{color:#b3261e}
footer{margin-top:2rem;font-size:.75rem;color:#888;text-align:center}
</style>
</head>
<body>
<div class="wrap">
<h1>Performance Contract {{.Contract.ContractNumber}}</h1>
<p>{{.Settings.BusinessName}} has sent you a performance contract. Please review the details and sign below.</p>
<dl>
<dt>Client</dt><dd>{{.Contract.ClientName}}</dd>
<dt>Event date</dt><dd>{{.Contract.EventDate.Format "Monday, 2 January 2006"}}</dd>
{{if .Contract.StartTime}}<dt>Time</dt><dd>{{.Contract.StartTime}} &ndash; {{.Contract.EndTime}}</dd>{{end}}
{{if .Contract.Venue}}<dt>Venue</dt><dd>{{.Contract.Venue}}</dd>{{end}}
{{if .Contract.VenueAddress}}<dt>Venue address</dt><dd>{{.Contract.VenueAddress}}</dd>{{end}}
<dt>Fee</dt><dd>{{printf "%.2f" .Contract.Fee}}</dd>
{{if gt .Contract.Deposit 0.0}}<dt>Deposit</dt><dd>{{printf "%.2f" .Contract.Deposit}}</dd>{{end}}
</dl>

<form id="signing-form">
<label>Full name (typed signature) <small class="req">*</small>
<input type="text" name="signatureName" required autocomplete="name">
</label>
{{if .NeedPhone}}<label>Phone <small class="req">*</small>
<input type="tel" name="clientPhone" required autocomplete="tel">
</label>{{else}}<label>Phone
<input type="tel" name="clientPhone" autocomplete="tel" placeholder="{{.Contract.ClientPhone}}">
</label>{{end}}
{{if .NeedAddress}}<label>Your address <small class="req">*</small>
<input type="text" name="clientAddress" required>
</label>{{else}}<label>Your address
<input type="text" name="clientAddress" placeholder="{{.Contract.ClientAddress}}">
</label>{{end}}
{{if .NeedVenueAddress}}<label>Venue address <small class="req">*</small>
<input type="text" name="venueAddress" required>
</label>{{end}}
<button type="submit">Sign contract</button>
<p class="error" id="error"></p>
</form>

<div class="done" id="done">
<h2 id="done-title">Contract signed</h2>
<p id="done-detail"></p>
</div>

<footer>Page generated {{.RenderedAt.Format "2 Jan 2006 15:04 MST"}} &middot; {{.Settings.BusinessName}}</footer>
</div>
<script>
(function(){
var form=document.getElementById('signing-form');
var errEl=document.getElementById('error');
form.addEventListener('submit',function(ev){
  ev.preventDefault();
  errEl.style.display='none';
  var btn=form.querySelector('button');btn.disabled=true;
  var fd=new FormData(form);
  var body={
    signatureName:fd.get('signatureName')||'',
    clientPhone:fd.get('clientPhone')||'',
    clientAddress:fd.get('clientAddress')||'',
    venueAddress:fd.get('venueAddress')||''
  };
  fetch({{.SignEndpoint}},{
    method:'POST',
    headers:{'Content-Type':'application/json'},
    body:JSON.stringify(body)
  }).then(function(r){return r.json().then(function(j){return{ok:r.ok,j:j}})})
  .then(function(res){
    if(res.ok&&res.j.success){
      showDone(res.j.alreadySigned,res.j.signedBy,res.j.signedAt);
    }else{
      var msg=(res.j&&res.j.error&&res.j.error.message)||'Could not sign the contract. Please try again.';
      errEl.textContent=msg;errEl.style.display='block';btn.disabled=false;
    }
  }).catch(function(){
    errEl.textContent='Network error. Please try again.';
    errEl.style.display='block';btn.disabled=false;
  });
});
function showDone(already,signedBy,signedAt){
  form.style.display='none';
  var done=document.getElementById('done');
  done.style.display='block';
  if(already){
    document.getElementById('done-title').textContent='Contract already signed';
    document.getElementById('done-detail').textContent='This contract was already signed by '+signedBy+' on '+new Date(signedAt).toLocaleString()+'.';
  }else{
    document.getElementById('done-detail').textContent='Thank you, '+signedBy+'. A confirmation email is on its way.';
  }
}
})();
</script>
</body>
</html>
`))

var signedPageTmpl = template.Must(template.New("signed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Performance Contract {{.Contract.ContractNumber}} (signed)</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;margin:0;background:#f4f5f7;color:#1f2430}
.wrap{max-width:640px;margin:2rem auto;background:#fff;border-radius:8px;padding:2rem;box-shadow:0 1px 4px rgba(0,0,0,.12)}
h1{font-size:1.4rem;margin-top:0}
.badge{display:inline-block;background:#1b7f4b;color:#fff;border-radius:4px;padding:.25rem .75rem;font-size:.85rem}
dl{display:grid;grid-template-columns:10rem 1fr;gap:.4rem 1rem;margin-top:1.5rem}
dt{font-weight:bold;color:#555}
dd{margin:0}
a.download{display:inline-block;margin-top:1.5rem;color:#2457d6}
footer{margin-top:2rem;font-size:.75rem;color:#888;text-align:center}
</style>
</head>
<body>
<div class="wrap">
<h1>Performance Contract {{.Contract.ContractNumber}}</h1>
<span class="badge">Signed</span>
<p>This contract was signed by <strong>{{.Contract.SignatureName}}</strong>{{if .Contract.SignedAt}} on {{.Contract.SignedAt.Format "2 January 2006 at 15:04 MST"}}{{end}}.</p>
<dl>
<dt>Client</dt><dd>{{.Contract.ClientName}}</dd>
<dt>Event date</dt><dd>{{.Contract.EventDate.Format "Monday, 2 January 2006"}}</dd>
{{if .Contract.StartTime}}<dt>Time</dt><dd>{{.Contract.StartTime}} &ndash; {{.Contract.EndTime}}</dd>{{end}}
{{if .Contract.Venue}}<dt>Venue</dt><dd>{{.Contract.Venue}}</dd>{{end}}
{{if .Contract.VenueAddress}}<dt>Venue address</dt><dd>{{.Contract.VenueAddress}}</dd>{{end}}
<dt>Fee</dt><dd>{{printf "%.2f" .Contract.Fee}}</dd>
</dl>
{{if .Contract.ContractPDFURL}}<a class="download" href="{{.Contract.ContractPDFURL}}">Download the signed contract (PDF)</a>{{end}}
<footer>Page generated {{.RenderedAt.Format "2 Jan 2006 15:04 MST"}} &middot; {{.Settings.BusinessName}}</footer>
</div>
</body>
</html>
`))
